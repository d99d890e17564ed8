// Package classify assigns confidence tiers to normalized mentions.
package classify

import "github.com/abelbrown/mentions/internal/model"

// HighThreshold is the inclusive lower bound of the high tier.
const HighThreshold = 0.85

// Classify returns m with Tier set. A numeric score decides the tier on its
// own; otherwise the tier is inherited from hint. An unset or unknown hint
// falls back to low so no mention leaves without a tier.
func Classify(m model.Mention, hint model.Tier) model.Mention {
	switch {
	case m.Score != nil && *m.Score >= HighThreshold:
		m.Tier = model.TierHigh
	case m.Score != nil:
		m.Tier = model.TierLow
	case hint.Valid():
		m.Tier = hint
	default:
		m.Tier = model.TierLow
	}
	return m
}

// All classifies each mention against its own Hint.
func All(mentions []model.Mention) []model.Mention {
	out := make([]model.Mention, len(mentions))
	for i, m := range mentions {
		out[i] = Classify(m, m.Hint)
	}
	return out
}
