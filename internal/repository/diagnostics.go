package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const diagnosticColumns = `id, user_id, resource_type, status, payload_ref,
	description, summary, result, failure_reason, tier_at_time, created_at, completed_at`

func scanDiagnostic(row *sql.Row) (Diagnostic, error) {
	var d Diagnostic
	err := row.Scan(
		&d.ID, &d.UserID, &d.ResourceType, &d.Status, &d.PayloadRef,
		&d.Description, &d.Summary, &d.Result, &d.FailureReason,
		&d.TierAtTime, &d.CreatedAt, &d.CompletedAt,
	)
	return d, err
}

// CreateDiagnosticParams inserts a pending diagnostic before the external
// analysis call is made.
type CreateDiagnosticParams struct {
	UserID       uuid.UUID
	ResourceType string
	PayloadRef   string
	Description  string
	TierAtTime   string
}

const createDiagnostic = `
INSERT INTO diagnostics (user_id, resource_type, status, payload_ref, description, tier_at_time)
VALUES ($1, $2, 'pending', $3, $4, $5)
RETURNING ` + diagnosticColumns

func (q *Queries) CreateDiagnostic(ctx context.Context, arg CreateDiagnosticParams) (Diagnostic, error) {
	row := q.db.QueryRowContext(ctx, createDiagnostic,
		arg.UserID, arg.ResourceType, arg.PayloadRef, arg.Description, arg.TierAtTime)
	return scanDiagnostic(row)
}

const getDiagnosticByIDAndUserID = `
SELECT ` + diagnosticColumns + ` FROM diagnostics WHERE id = $1 AND user_id = $2`

func (q *Queries) GetDiagnosticByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (Diagnostic, error) {
	return scanDiagnostic(q.db.QueryRowContext(ctx, getDiagnosticByIDAndUserID, id, userID))
}

// UpdateDiagnosticCompletedParams records a successful analysis. Status
// moves to completed; the write is expected to happen in the same
// transaction as the usage event insert.
type UpdateDiagnosticCompletedParams struct {
	ID      uuid.UUID
	Summary string
	Result  pqtype.NullRawMessage
}

const updateDiagnosticCompleted = `
UPDATE diagnostics
SET status = 'completed', summary = $2, result = $3, completed_at = now()
WHERE id = $1 AND status = 'pending'`

func (q *Queries) UpdateDiagnosticCompleted(ctx context.Context, arg UpdateDiagnosticCompletedParams) error {
	res, err := q.db.ExecContext(ctx, updateDiagnosticCompleted, arg.ID, arg.Summary, arg.Result)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const updateDiagnosticFailed = `
UPDATE diagnostics
SET status = 'failed', failure_reason = $2, completed_at = now()
WHERE id = $1 AND status = 'pending'`

func (q *Queries) UpdateDiagnosticFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := q.db.ExecContext(ctx, updateDiagnosticFailed, id,
		sql.NullString{String: reason, Valid: reason != ""})
	return err
}

const countDiagnosticsByUserID = `
SELECT count(*) FROM diagnostics
WHERE user_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))`

func (q *Queries) CountDiagnosticsByUserID(ctx context.Context, userID uuid.UUID, statuses []string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countDiagnosticsByUserID, userID, pq.Array(statuses)).Scan(&count)
	return count, err
}

// ListDiagnosticsByUserIDParams filters a paginated listing. An empty
// Statuses slice matches every status.
type ListDiagnosticsByUserIDParams struct {
	UserID   uuid.UUID
	Statuses []string
	Limit    int64
	Offset   int64
}

const listDiagnosticsByUserID = `
SELECT ` + diagnosticColumns + `
FROM diagnostics
WHERE user_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

func (q *Queries) ListDiagnosticsByUserID(ctx context.Context, arg ListDiagnosticsByUserIDParams) ([]Diagnostic, error) {
	rows, err := q.db.QueryContext(ctx, listDiagnosticsByUserID,
		arg.UserID, pq.Array(arg.Statuses), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.ResourceType, &d.Status, &d.PayloadRef,
			&d.Description, &d.Summary, &d.Result, &d.FailureReason,
			&d.TierAtTime, &d.CreatedAt, &d.CompletedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
