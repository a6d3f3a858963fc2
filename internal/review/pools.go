package review

import (
	"time"

	"github.com/leetrack/backend/internal/models"
)

// Recency gates, in whole calendar days since the last review.
const (
	ReviewAgeLow      = 3
	ReviewAgeMid      = 7
	ReviewAgeMastered = 14
)

// ageInDays is the whole-calendar-day distance from lastReviewed to today.
func ageInDays(lastReviewed, today time.Time) int {
	return int(dateOnly(today).Sub(dateOnly(lastReviewed)).Hours() / 24)
}

// DueForReview reports whether a problem's state and recency make it due.
// A problem never reviewed is always due; NEW problems are never "due" —
// they sit in their own ungated pool.
func DueForReview(state models.MasteryState, lastReviewed *time.Time, today time.Time) bool {
	var gate int
	switch state {
	case models.MasteryLow:
		gate = ReviewAgeLow
	case models.MasteryMid:
		gate = ReviewAgeMid
	case models.MasteryHigh:
		gate = ReviewAgeMastered
	default:
		return false
	}
	if lastReviewed == nil {
		return true
	}
	return ageInDays(*lastReviewed, today) >= gate
}
