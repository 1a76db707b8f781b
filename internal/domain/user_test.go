package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveTier(t *testing.T) {
	periodEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		tier   Tier
		status SubscriptionStatus
		now    time.Time
		want   Tier
	}{
		{"active pro keeps pro", TierPro, SubscriptionStatusActive, periodEnd.Add(-time.Hour), TierPro},
		{"cancelled pro keeps pro until period end", TierPro, SubscriptionStatusCancelled, periodEnd.Add(-time.Hour), TierPro},
		{"cancelled pro degrades at period end", TierPro, SubscriptionStatusCancelled, periodEnd, TierFree},
		{"cancelled pro degrades after period end", TierPro, SubscriptionStatusCancelled, periodEnd.Add(time.Hour), TierFree},
		{"active business past period end keeps business", TierBusiness, SubscriptionStatusActive, periodEnd.Add(time.Hour), TierBusiness},
		{"past due keeps paid tier", TierPro, SubscriptionStatusPastDue, periodEnd.Add(time.Hour), TierPro},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Tier: tt.tier, Status: tt.status, PeriodEnd: periodEnd}
			assert.Equal(t, tt.want, u.EffectiveTier(tt.now))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", (&User{Name: "Ada", Email: "ada@example.com"}).DisplayName())
	assert.Equal(t, "ada@example.com", (&User{Email: "ada@example.com"}).DisplayName())
}

func TestSessionIsExpired(t *testing.T) {
	assert.False(t, (&Session{ExpiresAt: time.Now().Add(time.Hour)}).IsExpired())
	assert.True(t, (&Session{ExpiresAt: time.Now().Add(-time.Hour)}).IsExpired())
}
