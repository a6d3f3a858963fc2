package models

import "time"

type MasteryState string

const (
	MasteryNew  MasteryState = "new"
	MasteryLow  MasteryState = "low"
	MasteryMid  MasteryState = "mid"
	MasteryHigh MasteryState = "high"
)

var ValidMasteryStates = map[MasteryState]bool{
	MasteryNew:  true,
	MasteryLow:  true,
	MasteryMid:  true,
	MasteryHigh: true,
}

// Outcome is the grade the user reports after working a problem.
// "new" is never a valid outcome.
type Outcome string

const (
	OutcomeLow  Outcome = "low"
	OutcomeMid  Outcome = "mid"
	OutcomeHigh Outcome = "high"
)

var ValidOutcomes = map[Outcome]bool{
	OutcomeLow:  true,
	OutcomeMid:  true,
	OutcomeHigh: true,
}

// ── Core Structs ───────────────────────────────────────

type Problem struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Link         string       `json:"link,omitempty"`
	Mastery      MasteryState `json:"mastery"`
	Insight      *string      `json:"insight,omitempty"`
	LastReviewed *time.Time   `json:"last_reviewed,omitempty"`
	ReviewCount  int          `json:"review_count"`
	Topics       []Topic      `json:"topics,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type Topic struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Attempt struct {
	ID        int64     `json:"id"`
	ProblemID int64     `json:"problem_id"`
	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// ── Request / Response ─────────────────────────────────

type CreateProblemRequest struct {
	Name   string   `json:"name"`
	Link   string   `json:"link"`
	Topics []string `json:"topics"`
}

// PatchProblemRequest carries an explicit field set; nil means "leave alone".
// Mastery, last_reviewed and review_count are owned by the review engine and
// are deliberately not patchable here.
type PatchProblemRequest struct {
	Name    *string `json:"name"`
	Link    *string `json:"link"`
	Insight *string `json:"insight"`
}

type SetTopicsRequest struct {
	Topics []string `json:"topics"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
