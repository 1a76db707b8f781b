package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentPeriod(t *testing.T) {
	anchorStart := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	anchor := Period{Start: anchorStart, End: anchorStart.Add(DefaultCycle)}

	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
	}{
		{
			name:      "inside anchor period",
			now:       anchorStart.Add(10 * 24 * time.Hour),
			wantStart: anchorStart,
		},
		{
			name:      "exactly at anchor start",
			now:       anchorStart,
			wantStart: anchorStart,
		},
		{
			name:      "one cycle later",
			now:       anchorStart.Add(DefaultCycle + time.Hour),
			wantStart: anchorStart.Add(DefaultCycle),
		},
		{
			name:      "exactly at period boundary rolls over",
			now:       anchorStart.Add(DefaultCycle),
			wantStart: anchorStart.Add(DefaultCycle),
		},
		{
			name:      "many cycles later",
			now:       anchorStart.Add(7*DefaultCycle + 12*time.Hour),
			wantStart: anchorStart.Add(7 * DefaultCycle),
		},
		{
			name:      "before anchor returns anchor",
			now:       anchorStart.Add(-time.Hour),
			wantStart: anchorStart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CurrentPeriod(anchor, tt.now)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantStart.Add(DefaultCycle), got.End)
			if !tt.now.Before(tt.wantStart) {
				assert.True(t, got.Contains(tt.now))
			}
		})
	}
}

func TestCurrentPeriodDegenerateAnchor(t *testing.T) {
	// A zero-length stored period falls back to the default cycle rather
	// than dividing by zero.
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	anchor := Period{Start: start, End: start}

	got := CurrentPeriod(anchor, start.Add(45*24*time.Hour))
	assert.Equal(t, start.Add(DefaultCycle), got.Start)
	assert.Equal(t, DefaultCycle, got.Cycle())
}

func TestPeriodContains(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := Period{Start: start, End: start.Add(DefaultCycle)}

	assert.True(t, p.Contains(start))
	assert.True(t, p.Contains(start.Add(DefaultCycle-time.Nanosecond)))
	assert.False(t, p.Contains(start.Add(DefaultCycle))) // half-open
	assert.False(t, p.Contains(start.Add(-time.Nanosecond)))
}

func TestEffectiveTierAtPeriodEnd(t *testing.T) {
	now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status SubscriptionStatus
		end    time.Time
		want   Tier
	}{
		{"active keeps tier", SubscriptionStatusActive, now.Add(-time.Hour), TierPro},
		{"cancelled mid-period keeps tier", SubscriptionStatusCancelled, now.Add(10 * 24 * time.Hour), TierPro},
		{"cancelled after period end falls back to free", SubscriptionStatusCancelled, now.Add(-time.Hour), TierFree},
		{"past_due keeps tier", SubscriptionStatusPastDue, now.Add(-time.Hour), TierPro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Tier: TierPro, Status: tt.status, PeriodEnd: tt.end}
			assert.Equal(t, tt.want, u.EffectiveTier(now))
		})
	}
}
