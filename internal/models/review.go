package models

import "time"

type DailySelection struct {
	ID         int64     `json:"id"`
	ProblemID  int64     `json:"problem_id"`
	SelectedOn time.Time `json:"selected_on"`
	Completed  bool      `json:"completed"`
}

// SelectionEntry is a selection row joined with its problem, as served to the UI.
type SelectionEntry struct {
	Problem   Problem `json:"problem"`
	Completed bool    `json:"completed"`
}

type TodayResponse struct {
	Date       string           `json:"date"`
	Selections []SelectionEntry `json:"selections"`
}

type CompleteRequest struct {
	ProblemID int64   `json:"problem_id"`
	Outcome   Outcome `json:"outcome"`
}

type ReplaceRequest struct {
	ProblemID int64 `json:"problem_id"`
}

type ReplaceResponse struct {
	Replaced    int64   `json:"replaced"`
	Replacement Problem `json:"replacement"`
}

type ManualReviewRequest struct {
	Outcome Outcome `json:"outcome"`
	Insight *string `json:"insight"`
}

type PoolsResponse struct {
	New      []Problem `json:"new"`
	Review   []Problem `json:"review"`
	Mastered []Problem `json:"mastered"`
}

// StatsResponse is the full analytics surface: these four numbers and nothing else.
type StatsResponse struct {
	CurrentStreak  int `json:"current_streak"`
	ReadyForReview int `json:"ready_for_review"`
	TotalProblems  int `json:"total_problems"`
	MasteredCount  int `json:"mastered_count"`
}

type SettingsResponse struct {
	DailyProblemCount int `json:"daily_problem_count"`
}

type UpdateSettingsRequest struct {
	DailyProblemCount int `json:"daily_problem_count"`
}
