package repository

import (
	"context"

	"github.com/google/uuid"
)

type CreateAuditEventParams struct {
	ActorID uuid.UUID
	Action  string
	Detail  string
}

const createAuditEvent = `
INSERT INTO audit_events (actor_id, action, detail)
VALUES ($1, $2, $3)
RETURNING id, actor_id, action, detail, created_at`

func (q *Queries) CreateAuditEvent(ctx context.Context, arg CreateAuditEventParams) (AuditEvent, error) {
	var e AuditEvent
	err := q.db.QueryRowContext(ctx, createAuditEvent, arg.ActorID, arg.Action, arg.Detail).
		Scan(&e.ID, &e.ActorID, &e.Action, &e.Detail, &e.CreatedAt)
	return e, err
}

const listAuditEvents = `
SELECT id, actor_id, action, detail, created_at
FROM audit_events ORDER BY created_at DESC LIMIT $1`

func (q *Queries) ListAuditEvents(ctx context.Context, limit int64) ([]AuditEvent, error) {
	rows, err := q.db.QueryContext(ctx, listAuditEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
