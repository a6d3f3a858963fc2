package review

import "github.com/leetrack/backend/internal/models"

// NextMastery is the single transition function every review path goes
// through (daily completion and manual review alike).
//
// NEW accepts any outcome directly. HIGH is terminal. LOW steps up to the
// outcome. MID holds only on a repeated MID outcome; any other outcome,
// including LOW, promotes to HIGH. The MID+LOW cell is deliberate — the
// system it reproduces shipped with that rule and review histories depend
// on it, so it is not "fixed" to a plain max().
func NextMastery(current models.MasteryState, outcome models.Outcome) models.MasteryState {
	switch current {
	case models.MasteryNew:
		return models.MasteryState(outcome)
	case models.MasteryHigh:
		return models.MasteryHigh
	case models.MasteryLow:
		switch outcome {
		case models.OutcomeLow:
			return models.MasteryLow
		case models.OutcomeMid:
			return models.MasteryMid
		default:
			return models.MasteryHigh
		}
	case models.MasteryMid:
		if outcome == models.OutcomeMid {
			return models.MasteryMid
		}
		return models.MasteryHigh
	default:
		return current
	}
}
