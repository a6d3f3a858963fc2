package review

import "errors"

var (
	// ErrNotFound — the referenced problem does not exist.
	ErrNotFound = errors.New("problem not found")

	// ErrNotInSelection — the problem is not part of today's selection.
	ErrNotInSelection = errors.New("problem is not in today's selection")

	// ErrAlreadyCompleted — the selection entry was already completed.
	ErrAlreadyCompleted = errors.New("selection entry already completed")

	// ErrNoEligibleProblem — a replacement was requested but every pool is empty.
	ErrNoEligibleProblem = errors.New("no eligible problem in any pool")

	// ErrInvalidOutcome — the outcome value is not low/mid/high.
	ErrInvalidOutcome = errors.New("invalid outcome")
)
