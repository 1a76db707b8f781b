package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const transactionColumns = `id, user_id, reference, tier_requested, amount_cents,
	status, created_at, updated_at`

func scanTransaction(row *sql.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Reference, &t.TierRequested,
		&t.AmountCents, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTransactionParams struct {
	UserID        uuid.UUID
	Reference     string
	TierRequested string
	AmountCents   int64
}

const createTransaction = `
INSERT INTO transactions (user_id, reference, tier_requested, amount_cents, status)
VALUES ($1, $2, $3, $4, 'initiated')
RETURNING ` + transactionColumns

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.UserID, arg.Reference, arg.TierRequested, arg.AmountCents)
	return scanTransaction(row)
}

const getTransactionByReference = `
SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

func (q *Queries) GetTransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionByReference, reference))
}

const getTransactionByReferenceForUpdate = `
SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`

// GetTransactionByReferenceForUpdate locks the transaction row so the
// webhook and a concurrent client-driven verify settle the same payment
// exactly once. Only call inside a transaction.
func (q *Queries) GetTransactionByReferenceForUpdate(ctx context.Context, reference string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransactionByReferenceForUpdate, reference))
}

const updateTransactionStatus = `
UPDATE transactions SET status = $2, updated_at = now() WHERE id = $1`

func (q *Queries) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := q.db.ExecContext(ctx, updateTransactionStatus, id, status)
	return err
}
