package repository

import (
	"context"

	"github.com/google/uuid"
)

type CreateAiUsageParams struct {
	UserID       uuid.UUID
	DiagnosticID uuid.NullUUID
	Operation    string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostCents    int64
}

const createAiUsage = `
INSERT INTO ai_usage (user_id, diagnostic_id, operation, model, input_tokens, output_tokens, cost_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, diagnostic_id, operation, model, input_tokens, output_tokens, cost_cents, created_at`

func (q *Queries) CreateAiUsage(ctx context.Context, arg CreateAiUsageParams) (AiUsage, error) {
	var u AiUsage
	err := q.db.QueryRowContext(ctx, createAiUsage,
		arg.UserID, arg.DiagnosticID, arg.Operation, arg.Model,
		arg.InputTokens, arg.OutputTokens, arg.CostCents).
		Scan(&u.ID, &u.UserID, &u.DiagnosticID, &u.Operation, &u.Model,
			&u.InputTokens, &u.OutputTokens, &u.CostCents, &u.CreatedAt)
	return u, err
}
