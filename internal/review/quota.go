package review

import (
	"fmt"
	"math"
)

// Daily count bounds. The allocation correction below is exact for this
// range and for nothing wider, so the bounds are enforced, not advisory.
const (
	MinDailyCount = 3
	MaxDailyCount = 10
)

// Quota is the per-pool share of a day's target count.
type Quota struct {
	New      int
	Review   int
	Mastered int
}

func (q Quota) Total() int {
	return q.New + q.Review + q.Mastered
}

// Allocate splits a daily target into pool quotas: 50% new (rounded up),
// 40% review (rounded up), 10% mastered (rounded down, floor of one). When
// the rounded parts overshoot the target, the excess comes out of the
// mastered share first, then one off the review share.
func Allocate(n int) (Quota, error) {
	if n < MinDailyCount || n > MaxDailyCount {
		return Quota{}, fmt.Errorf("daily count must be between %d and %d, got %d", MinDailyCount, MaxDailyCount, n)
	}

	q := Quota{
		New:      int(math.Ceil(float64(n) * 0.5)),
		Review:   int(math.Ceil(float64(n) * 0.4)),
		Mastered: max(1, int(math.Floor(float64(n)*0.1))),
	}

	if excess := q.Total() - n; excess > 0 {
		q.Mastered -= excess
		if q.Mastered < 0 {
			q.Mastered = 0
		}
	}
	if q.Total() > n && q.Review > 0 {
		q.Review--
	}

	return q, nil
}

// Rebalance caps each quota to its pool's eligible size, then hands any
// shortfall to the other pools in priority order new, review, mastered,
// never exceeding a pool's supply. The result uses every eligible problem
// before coming up short of n.
func Rebalance(q Quota, poolNew, poolReview, poolMastered int) Quota {
	n := q.Total()

	actual := Quota{
		New:      min(q.New, poolNew),
		Review:   min(q.Review, poolReview),
		Mastered: min(q.Mastered, poolMastered),
	}

	shortfall := n - actual.Total()
	if shortfall <= 0 {
		return actual
	}

	if extra := min(shortfall, poolNew-actual.New); extra > 0 {
		actual.New += extra
		shortfall -= extra
	}
	if extra := min(shortfall, poolReview-actual.Review); extra > 0 {
		actual.Review += extra
		shortfall -= extra
	}
	if extra := min(shortfall, poolMastered-actual.Mastered); extra > 0 {
		actual.Mastered += extra
	}

	return actual
}
