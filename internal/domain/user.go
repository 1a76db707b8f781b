// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for
// authentication and subscription state. These types are separate from the
// repository models to allow for business logic enrichment and to decouple
// the domain layer from the database layer.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// IsValid returns true for a known subscription status.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCancelled:
		return true
	default:
		return false
	}
}

// User represents a registered user of the Fixlens platform.
//
// Subscription state lives on the user row and is mutated only by the tier
// synchronizer; the quota evaluator reads it. Readers always observe either
// the old or the fully-applied new state because the synchronizer writes
// tier, status, and period in a single UPDATE.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string // Never expose this in API responses
	Name             string
	StripeCustomerID string

	// StripeSubscriptionID is the provider-side subscription set at settle
	// time; empty for free-tier users. Cancel uses it to stop renewals.
	StripeSubscriptionID string

	// Subscription state. The period anchors the rolling quota window;
	// see domain.CurrentPeriod.
	Tier             Tier
	Status           SubscriptionStatus
	PeriodStart      time.Time
	PeriodEnd        time.Time
	RenewalReference string // provider reference of the transaction that set the tier

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubscriptionPeriod returns the stored anchor period.
func (u *User) SubscriptionPeriod() Period {
	return Period{Start: u.PeriodStart, End: u.PeriodEnd}
}

// EffectiveTier returns the tier quota checks should use at the given time.
// A cancelled subscription keeps its paid tier until the period ends
// ("paid through end of period"); the scheduled downgrade job makes the
// fall-back durable, but reads degrade correctly even before it runs.
func (u *User) EffectiveTier(now time.Time) Tier {
	if u.Status == SubscriptionStatusCancelled && !now.Before(u.PeriodEnd) {
		return TierFree
	}
	return u.Tier
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored in the database with a hashed token.
// The raw token is only given to the client once (at login).
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, will be hashed by service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
