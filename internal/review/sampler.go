package review

import (
	"math/rand"

	"github.com/leetrack/backend/internal/models"
)

// DefaultMaxPerTopic caps how many problems sharing a topic land in one
// day's sample.
const DefaultMaxPerTopic = 2

// SampleDiverse picks count problems from pool uniformly at random while
// keeping every topic's representation at or below maxPerTopic. topics maps
// problem id to its tag names; problems absent from the map are
// unconstrained. When the cap cannot fill all slots, remaining slots are
// filled from the same shuffled order with the cap ignored, so the result
// always has min(count, len(pool)) problems.
func SampleDiverse(pool []models.Problem, topics map[int64][]string, count, maxPerTopic int, rng *rand.Rand) []models.Problem {
	if len(pool) == 0 || count <= 0 {
		return nil
	}
	if count >= len(pool) {
		out := make([]models.Problem, len(pool))
		copy(out, pool)
		return out
	}

	shuffled := make([]models.Problem, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	topicCounts := make(map[string]int)
	picked := make(map[int64]bool)
	result := make([]models.Problem, 0, count)

	for _, p := range shuffled {
		if len(result) == count {
			break
		}
		if overCap(topics[p.ID], topicCounts, maxPerTopic) {
			continue
		}
		for _, t := range topics[p.ID] {
			topicCounts[t]++
		}
		picked[p.ID] = true
		result = append(result, p)
	}

	// Constraint could not fill every slot; top up from the same order.
	for _, p := range shuffled {
		if len(result) == count {
			break
		}
		if picked[p.ID] {
			continue
		}
		picked[p.ID] = true
		result = append(result, p)
	}

	return result
}

func overCap(topicNames []string, counts map[string]int, maxPerTopic int) bool {
	for _, t := range topicNames {
		if counts[t]+1 > maxPerTopic {
			return true
		}
	}
	return false
}

// SampleOne picks a single problem uniformly at random.
func SampleOne(pool []models.Problem, rng *rand.Rand) (models.Problem, bool) {
	if len(pool) == 0 {
		return models.Problem{}, false
	}
	return pool[rng.Intn(len(pool))], true
}
