// Package domain contains core business types and interfaces.
//
// This file implements rolling billing-period arithmetic. Periods are
// aligned to the subscription cycle, not the calendar month: the current
// period is the stored anchor advanced by whole cycle lengths until "now"
// falls inside it. Nothing is persisted, so tier and period changes are
// reflected immediately without a migration step.
package domain

import "time"

// DefaultCycle is the billing cycle length used for free-tier signups and
// as a fallback when a stored period is degenerate.
const DefaultCycle = 30 * 24 * time.Hour

// Period is a half-open billing window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Cycle returns the period length.
func (p Period) Cycle() time.Duration {
	return p.End.Sub(p.Start)
}

// CurrentPeriod advances the anchor period by whole multiples of its cycle
// length until now falls within [start, end). If now precedes the anchor
// (clock skew, or a period freshly written by the synchronizer) the anchor
// itself is returned.
func CurrentPeriod(anchor Period, now time.Time) Period {
	cycle := anchor.Cycle()
	if cycle <= 0 {
		cycle = DefaultCycle
	}

	start := anchor.Start
	if now.Before(start) {
		return Period{Start: start, End: start.Add(cycle)}
	}

	elapsed := now.Sub(start)
	n := elapsed / cycle
	start = start.Add(n * cycle)

	return Period{Start: start, End: start.Add(cycle)}
}

// NewPeriod returns a fresh period of the default cycle starting at now.
// Used at signup and when the synchronizer applies a successful payment.
func NewPeriod(now time.Time) Period {
	return Period{Start: now, End: now.Add(DefaultCycle)}
}
