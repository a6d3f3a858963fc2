package review

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/leetrack/backend/internal/models"
)

// Store is the persistence surface the selection engine runs against.
// Every method that performs more than one write does so inside a single
// transaction; the engine itself never sees a partially applied mutation.
type Store interface {
	DailyProblemCount() (int, error)
	SetDailyProblemCount(n int) error

	GetProblem(id int64) (*models.Problem, error)
	ProblemCounts() (total, mastered int, err error)

	// SelectionsOn returns the selection entries for a date joined with
	// their problems, in insertion order.
	SelectionsOn(date time.Time) ([]models.SelectionEntry, error)
	SelectionFor(date time.Time, problemID int64) (*models.DailySelection, error)

	// Pool queries express the eligibility rules. With excludeSelected
	// they skip problems already selected for the date; without it they
	// return every eligible problem. Order is stable (by id).
	PoolNew(date time.Time, excludeSelected bool) ([]models.Problem, error)
	PoolReview(date time.Time, excludeSelected bool) ([]models.Problem, error)
	PoolMastered(date time.Time, excludeSelected bool) ([]models.Problem, error)

	TopicsFor(problemIDs []int64) (map[int64][]string, error)

	InsertSelections(ctx context.Context, date time.Time, problemIDs []int64) error
	// RegenerateSelections deletes the date's selection rows and inserts
	// the new set in one transaction. Either both happen or neither does.
	RegenerateSelections(ctx context.Context, date time.Time, problemIDs []int64) error
	SwapSelection(ctx context.Context, date time.Time, oldProblemID, newProblemID int64) error

	// ApplyReview updates the problem's mastery, stamps last_reviewed,
	// increments review_count, appends an attempt, optionally marks the
	// date's selection entry completed, and optionally sets the insight —
	// all in one transaction.
	ApplyReview(ctx context.Context, problemID int64, next models.MasteryState, outcome models.Outcome, date time.Time, completeSelection bool, insight *string) error

	// SelectionDays returns one row per date that has any selection,
	// newest first, with completion tallies.
	SelectionDays() ([]DayCompletion, error)
	ReadyForReviewCount(date time.Time) (int, error)
}

// Service composes the classifier, allocator and sampler into the daily
// selection operations. The clock and randomness source are injected so
// tests can pin both.
type Service struct {
	store Store
	now   func() time.Time
	rng   *rand.Rand
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewServiceAt builds a service with a fixed clock and random source.
func NewServiceAt(store Store, now func() time.Time, rng *rand.Rand) *Service {
	return &Service{store: store, now: now, rng: rng}
}

func (s *Service) today() time.Time {
	return dateOnly(s.now())
}

// ── Daily Selection ─────────────────────────────────────

// Today returns the selection for the current date, generating and
// persisting one if none exists yet. Once a date has a selection, repeated
// calls return it unchanged.
func (s *Service) Today(ctx context.Context) ([]models.SelectionEntry, error) {
	date := s.today()

	entries, err := s.store.SelectionsOn(date)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	if len(entries) > 0 {
		return entries, nil
	}

	chosen, err := s.choose(date, true)
	if err != nil {
		return nil, err
	}
	if len(chosen) > 0 {
		if err := s.store.InsertSelections(ctx, date, chosen); err != nil {
			return nil, fmt.Errorf("insert selections: %w", err)
		}
	}
	return s.store.SelectionsOn(date)
}

// Refresh replaces today's selection with a freshly generated one in a
// single atomic swap. Other dates are untouched. Candidates are drawn
// as if the day were already empty, so problems in the outgoing
// selection can be picked again.
func (s *Service) Refresh(ctx context.Context) ([]models.SelectionEntry, error) {
	date := s.today()

	chosen, err := s.choose(date, false)
	if err != nil {
		return nil, err
	}
	if err := s.store.RegenerateSelections(ctx, date, chosen); err != nil {
		return nil, fmt.Errorf("regenerate selections: %w", err)
	}
	return s.store.SelectionsOn(date)
}

// choose runs the allocator and sampler over the date's pools and
// returns the picked problem ids. It performs no writes.
func (s *Service) choose(date time.Time, excludeSelected bool) ([]int64, error) {
	count, err := s.store.DailyProblemCount()
	if err != nil {
		return nil, fmt.Errorf("load daily count: %w", err)
	}

	quota, err := Allocate(count)
	if err != nil {
		// The settings row is range-checked on write; an out-of-range
		// value here means the store was tampered with.
		return nil, fmt.Errorf("configured daily count invalid: %w", err)
	}

	poolNew, err := s.store.PoolNew(date, excludeSelected)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	poolReview, err := s.store.PoolReview(date, excludeSelected)
	if err != nil {
		return nil, fmt.Errorf("review pool: %w", err)
	}
	poolMastered, err := s.store.PoolMastered(date, excludeSelected)
	if err != nil {
		return nil, fmt.Errorf("mastered pool: %w", err)
	}

	quota = Rebalance(quota, len(poolNew), len(poolReview), len(poolMastered))

	ids := make([]int64, 0, len(poolNew)+len(poolReview)+len(poolMastered))
	for _, p := range poolNew {
		ids = append(ids, p.ID)
	}
	for _, p := range poolReview {
		ids = append(ids, p.ID)
	}
	for _, p := range poolMastered {
		ids = append(ids, p.ID)
	}
	topics, err := s.store.TopicsFor(ids)
	if err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}

	var chosen []int64
	for _, p := range SampleDiverse(poolNew, topics, quota.New, DefaultMaxPerTopic, s.rng) {
		chosen = append(chosen, p.ID)
	}
	for _, p := range SampleDiverse(poolReview, topics, quota.Review, DefaultMaxPerTopic, s.rng) {
		chosen = append(chosen, p.ID)
	}
	for _, p := range SampleDiverse(poolMastered, topics, quota.Mastered, DefaultMaxPerTopic, s.rng) {
		chosen = append(chosen, p.ID)
	}

	return chosen, nil
}

// ── Outcomes ────────────────────────────────────────────

// RecordCompletion applies the mastery transition for a problem in today's
// selection and marks its entry completed. All writes are one atomic unit;
// a validation failure leaves everything untouched.
func (s *Service) RecordCompletion(ctx context.Context, problemID int64, outcome models.Outcome) (*models.Problem, error) {
	if !models.ValidOutcomes[outcome] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	date := s.today()

	problem, err := s.store.GetProblem(problemID)
	if err != nil {
		return nil, err
	}

	sel, err := s.store.SelectionFor(date, problemID)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	if sel == nil {
		return nil, ErrNotInSelection
	}
	if sel.Completed {
		return nil, ErrAlreadyCompleted
	}

	next := NextMastery(problem.Mastery, outcome)
	if err := s.store.ApplyReview(ctx, problemID, next, outcome, date, true, nil); err != nil {
		return nil, fmt.Errorf("apply review: %w", err)
	}

	return s.store.GetProblem(problemID)
}

// ManualReview applies the same transition side effects as a daily
// completion but is independent of any selection — usable on any problem
// at any time. An optional insight note is stored in the same transaction.
func (s *Service) ManualReview(ctx context.Context, problemID int64, outcome models.Outcome, insight *string) (*models.Problem, error) {
	if !models.ValidOutcomes[outcome] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	problem, err := s.store.GetProblem(problemID)
	if err != nil {
		return nil, err
	}

	next := NextMastery(problem.Mastery, outcome)
	if err := s.store.ApplyReview(ctx, problemID, next, outcome, s.today(), false, insight); err != nil {
		return nil, fmt.Errorf("apply review: %w", err)
	}

	return s.store.GetProblem(problemID)
}

// ── Replacement ─────────────────────────────────────────

// Replace swaps an uncompleted entry of today's selection for a random
// eligible problem from the first non-empty pool (new, then review, then
// mastered). The pools already exclude everything selected today, the
// outgoing entry included, so the replacement is always a different problem.
func (s *Service) Replace(ctx context.Context, problemID int64) (*models.Problem, error) {
	date := s.today()

	if _, err := s.store.GetProblem(problemID); err != nil {
		return nil, err
	}

	sel, err := s.store.SelectionFor(date, problemID)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	if sel == nil {
		return nil, ErrNotInSelection
	}
	if sel.Completed {
		return nil, ErrAlreadyCompleted
	}

	pools := []func(time.Time, bool) ([]models.Problem, error){
		s.store.PoolNew, s.store.PoolReview, s.store.PoolMastered,
	}

	for _, pool := range pools {
		candidates, err := pool(date, true)
		if err != nil {
			return nil, fmt.Errorf("pool: %w", err)
		}
		replacement, ok := SampleOne(candidates, s.rng)
		if !ok {
			continue
		}
		if err := s.store.SwapSelection(ctx, date, problemID, replacement.ID); err != nil {
			return nil, fmt.Errorf("swap selection: %w", err)
		}
		return &replacement, nil
	}

	return nil, ErrNoEligibleProblem
}

// ── Pools & Stats ───────────────────────────────────────

func (s *Service) Pools() (*models.PoolsResponse, error) {
	date := s.today()

	poolNew, err := s.store.PoolNew(date, true)
	if err != nil {
		return nil, err
	}
	poolReview, err := s.store.PoolReview(date, true)
	if err != nil {
		return nil, err
	}
	poolMastered, err := s.store.PoolMastered(date, true)
	if err != nil {
		return nil, err
	}

	return &models.PoolsResponse{New: poolNew, Review: poolReview, Mastered: poolMastered}, nil
}

func (s *Service) Streak() (int, error) {
	days, err := s.store.SelectionDays()
	if err != nil {
		return 0, fmt.Errorf("selection days: %w", err)
	}
	return ComputeStreak(s.today(), days), nil
}

func (s *Service) Stats() (*models.StatsResponse, error) {
	streak, err := s.Streak()
	if err != nil {
		return nil, err
	}
	ready, err := s.store.ReadyForReviewCount(s.today())
	if err != nil {
		return nil, fmt.Errorf("ready count: %w", err)
	}
	total, mastered, err := s.store.ProblemCounts()
	if err != nil {
		return nil, fmt.Errorf("problem counts: %w", err)
	}

	return &models.StatsResponse{
		CurrentStreak:  streak,
		ReadyForReview: ready,
		TotalProblems:  total,
		MasteredCount:  mastered,
	}, nil
}

// ── Settings ────────────────────────────────────────────

func (s *Service) DailyProblemCount() (int, error) {
	return s.store.DailyProblemCount()
}

func (s *Service) SetDailyProblemCount(n int) error {
	if n < MinDailyCount || n > MaxDailyCount {
		return fmt.Errorf("daily count must be between %d and %d, got %d", MinDailyCount, MaxDailyCount, n)
	}
	return s.store.SetDailyProblemCount(n)
}
