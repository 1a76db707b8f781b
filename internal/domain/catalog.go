// Package domain contains core business types and interfaces.
//
// This file defines the entitlement catalog: the static mapping from
// subscription tier to per-resource monthly allowances plus the absolute
// property capacity. Changing plan limits is a deployment-time change, not
// a runtime operation, so the catalog is plain data with no failure modes.
package domain

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier represents the pricing tier of a subscription.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// IsValid returns true for a known tier.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPro, TierBusiness:
		return true
	default:
		return false
	}
}

func (t Tier) String() string {
	return string(t)
}

var titleCaser = cases.Title(language.English)

// DisplayName returns the tier name formatted for client display.
func (t Tier) DisplayName() string {
	return titleCaser.String(string(t))
}

// ParseTier validates a wire-format tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.IsValid() {
		return "", Invalid("tier.parse", "unknown tier: "+s)
	}
	return t, nil
}

// TierLimits holds the allowances for a single tier. Monthly allowances
// reset with the billing period; PropertyCapacity is absolute and never
// resets. A zero allowance means the feature is locked for the tier, not
// merely exhausted.
type TierLimits struct {
	PhotoPerPeriod   int64
	VideoPerPeriod   int64
	AudioPerPeriod   int64
	TextPerPeriod    int64
	PropertyCapacity int64
}

// tierCatalog maps subscription tiers to their limits.
var tierCatalog = map[Tier]TierLimits{
	TierFree: {
		PhotoPerPeriod:   2,
		VideoPerPeriod:   0,
		AudioPerPeriod:   0,
		TextPerPeriod:    5,
		PropertyCapacity: 1,
	},
	TierPro: {
		PhotoPerPeriod:   30,
		VideoPerPeriod:   10,
		AudioPerPeriod:   10,
		TextPerPeriod:    100,
		PropertyCapacity: 10,
	},
	TierBusiness: {
		PhotoPerPeriod:   200,
		VideoPerPeriod:   60,
		AudioPerPeriod:   60,
		TextPerPeriod:    1000,
		PropertyCapacity: 100,
	},
}

// CatalogFor returns the limits for a tier, defaulting to the free tier for
// unknown tiers.
func CatalogFor(tier Tier) TierLimits {
	if limits, ok := tierCatalog[tier]; ok {
		return limits
	}
	return tierCatalog[TierFree]
}

// Limit returns the per-period allowance for a metered resource type.
// Property slots have no period allowance; use PropertyCapacity instead.
func Limit(tier Tier, resource ResourceType) int64 {
	limits := CatalogFor(tier)
	switch resource {
	case ResourcePhoto:
		return limits.PhotoPerPeriod
	case ResourceVideo:
		return limits.VideoPerPeriod
	case ResourceAudio:
		return limits.AudioPerPeriod
	case ResourceText:
		return limits.TextPerPeriod
	default:
		return 0
	}
}

// PropertyCapacity returns the absolute number of property slots for a tier.
func PropertyCapacity(tier Tier) int64 {
	return CatalogFor(tier).PropertyCapacity
}
