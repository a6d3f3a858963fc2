package review

import "time"

// DayCompletion summarizes one calendar date's selection set.
type DayCompletion struct {
	Date      time.Time // midnight, date-only
	Total     int
	Completed int
}

// ComputeStreak counts consecutive fully-completed days ending at today.
// days must hold one entry per date that has any selection, sorted by date
// descending. The chain starts at today: a missing day or a day with any
// uncompleted selection ends it, and that day does not count. A partially
// completed today therefore yields zero.
func ComputeStreak(today time.Time, days []DayCompletion) int {
	expected := dateOnly(today)
	streak := 0

	for _, d := range days {
		if !dateOnly(d.Date).Equal(expected) {
			break
		}
		if d.Completed < d.Total {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}

	return streak
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
