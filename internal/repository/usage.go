package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CountUsageEventsParams counts committed consumption for one resource in
// the half-open window [PeriodStart, PeriodEnd).
type CountUsageEventsParams struct {
	UserID       uuid.UUID
	ResourceType string
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

const countUsageEvents = `
SELECT count(*) FROM usage_events
WHERE user_id = $1 AND resource_type = $2 AND created_at >= $3 AND created_at < $4`

func (q *Queries) CountUsageEvents(ctx context.Context, arg CountUsageEventsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUsageEvents,
		arg.UserID, arg.ResourceType, arg.PeriodStart, arg.PeriodEnd).Scan(&count)
	return count, err
}

// CreateUsageEventParams appends one consumption record. The unique index
// on diagnostic_id rejects a second event for the same diagnostic.
type CreateUsageEventParams struct {
	UserID       uuid.UUID
	ResourceType string
	DiagnosticID uuid.UUID
	Tier         string
}

const createUsageEvent = `
INSERT INTO usage_events (user_id, resource_type, diagnostic_id, tier)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, resource_type, diagnostic_id, tier, created_at`

func (q *Queries) CreateUsageEvent(ctx context.Context, arg CreateUsageEventParams) (UsageEvent, error) {
	var e UsageEvent
	err := q.db.QueryRowContext(ctx, createUsageEvent,
		arg.UserID, arg.ResourceType, arg.DiagnosticID, arg.Tier).
		Scan(&e.ID, &e.UserID, &e.ResourceType, &e.DiagnosticID, &e.Tier, &e.CreatedAt)
	return e, err
}

const getUsageEventByDiagnosticID = `
SELECT id, user_id, resource_type, diagnostic_id, tier, created_at
FROM usage_events WHERE diagnostic_id = $1`

func (q *Queries) GetUsageEventByDiagnosticID(ctx context.Context, diagnosticID uuid.UUID) (UsageEvent, error) {
	var e UsageEvent
	err := q.db.QueryRowContext(ctx, getUsageEventByDiagnosticID, diagnosticID).
		Scan(&e.ID, &e.UserID, &e.ResourceType, &e.DiagnosticID, &e.Tier, &e.CreatedAt)
	return e, err
}

const countProperties = `SELECT count(*) FROM properties WHERE user_id = $1`

func (q *Queries) CountProperties(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countProperties, userID).Scan(&count)
	return count, err
}
