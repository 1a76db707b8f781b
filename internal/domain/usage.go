// Package domain contains core business types and interfaces.
//
// This file defines the usage ledger types and the entitlement decision
// produced by the quota evaluator.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageEvent is an append-only record of one committed consumption. The
// current-period count for a (user, resource) pair is the number of events
// whose created_at falls inside the active period; counters are derived
// aggregates, never independently authoritative. At most one event may
// exist per diagnostic.
type UsageEvent struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ResourceType ResourceType
	DiagnosticID uuid.UUID
	Tier         Tier // tier in effect at commit time
	CreatedAt    time.Time
}

// Entitlement is the evaluator's decision for one (user, resource) pair.
//
// Locked means the tier's allowance is zero (the feature is not part of the
// plan); AtLimit means a non-zero allowance is exhausted for the current
// period. The two are surfaced differently to clients: locked prompts an
// upgrade, at-limit shows reset timing.
type Entitlement struct {
	Resource  ResourceType
	Locked    bool
	AtLimit   bool
	Used      int64
	Limit     int64
	Remaining int64
	CanUse    bool
	PeriodEnd *time.Time // reset time for metered resources; nil for property
}

// NewEntitlement builds the decision for one resource from the tier's
// allowance and the observed count. A zero allowance means the feature is
// not part of the plan: the result is Locked regardless of usage, and
// AtLimit stays false. Remaining is clamped at zero so a count that
// overshoots the allowance (after a downgrade mid-period) never reports a
// negative balance.
func NewEntitlement(resource ResourceType, used, limit int64, periodEnd *time.Time) Entitlement {
	ent := Entitlement{
		Resource:  resource,
		Used:      used,
		Limit:     limit,
		PeriodEnd: periodEnd,
	}
	if limit == 0 {
		ent.Locked = true
		return ent
	}
	ent.Remaining = limit - used
	if ent.Remaining < 0 {
		ent.Remaining = 0
	}
	ent.AtLimit = used >= limit
	ent.CanUse = !ent.AtLimit
	return ent
}

// UsageSnapshot is the compact usage view attached to submission responses.
type UsageSnapshot struct {
	Resource  ResourceType
	Used      int64
	Limit     int64
	Remaining int64
	Tier      Tier
}

// UsageSummary aggregates entitlements across all resource types for the
// usage endpoint.
type UsageSummary struct {
	Tier        Tier
	TierLabel   string
	Status      SubscriptionStatus
	PeriodStart time.Time
	PeriodEnd   time.Time
	Resources   []Entitlement
}
