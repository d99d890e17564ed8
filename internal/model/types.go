// Package model provides the canonical mention types every export shape is
// normalized into.
//
// Values built here are handed to the presentation layer as-is. Nothing in
// this package mutates a Mention or an aggregate after construction; callers
// that need a changed copy take one.
package model

import "fmt"

// Tier is the coarse confidence classification of a mention.
type Tier string

const (
	TierHigh Tier = "high"
	TierLow  Tier = "low"
)

// Tiers returns the tiers in display order.
func Tiers() []Tier {
	return []Tier{TierHigh, TierLow}
}

// Valid reports whether t is one of the two known tiers.
func (t Tier) Valid() bool {
	return t == TierHigh || t == TierLow
}

// ParseTier parses "high"/"low" (also accepting the "_confidence" suffix the
// export files use).
func ParseTier(s string) (Tier, error) {
	switch s {
	case "high", "high_confidence":
		return TierHigh, nil
	case "low", "low_confidence":
		return TierLow, nil
	}
	return "", fmt.Errorf("unknown confidence tier %q", s)
}

// SourceType tags where a mention was written.
type SourceType string

const (
	SourcePost    SourceType = "post"
	SourceComment SourceType = "comment"
)

// Well-known attribute keys. The set is open; these are the ones the
// exports are known to carry.
const (
	AttrSkinType     = "skin_type"
	AttrPriceSize    = "price_size"
	AttrEffects      = "effects"
	AttrStatus       = "status"
	AttrAvailability = "availability"
	AttrPostTitle    = "post_title"
)
