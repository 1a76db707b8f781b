package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// User is a row in the users table. Subscription state is stored inline;
// see domain.User for the business view.
type User struct {
	ID                   uuid.UUID
	Email                string
	PasswordHash         string
	Name                 string
	StripeCustomerID     sql.NullString
	StripeSubscriptionID sql.NullString
	Tier                 string
	SubscriptionStatus   string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	RenewalReference     sql.NullString
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Session is a row in the sessions table.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Property is a row in the properties table.
type Property struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Label     string
	Address   string
	CreatedAt time.Time
}

// Diagnostic is a row in the diagnostics table.
type Diagnostic struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	ResourceType  string
	Status        string
	PayloadRef    string
	Description   string
	Summary       string
	Result        pqtype.NullRawMessage
	FailureReason sql.NullString
	TierAtTime    string
	CreatedAt     time.Time
	CompletedAt   sql.NullTime
}

// UsageEvent is a row in the usage_events ledger.
type UsageEvent struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ResourceType string
	DiagnosticID uuid.UUID
	Tier         string
	CreatedAt    time.Time
}

// Transaction is a row in the transactions table.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Reference     string
	TierRequested string
	AmountCents   int64
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AuditEvent is a row in the audit_events table.
type AuditEvent struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Detail    string
	CreatedAt time.Time
}

// AiUsage is a row in the ai_usage table.
type AiUsage struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	DiagnosticID uuid.NullUUID
	Operation    string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostCents    int64
	CreatedAt    time.Time
}

// Job is a row in the jobs table.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      json.RawMessage
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
