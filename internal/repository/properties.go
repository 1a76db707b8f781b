package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type CreatePropertyParams struct {
	UserID  uuid.UUID
	Label   string
	Address string
}

const createProperty = `
INSERT INTO properties (user_id, label, address)
VALUES ($1, $2, $3)
RETURNING id, user_id, label, address, created_at`

func (q *Queries) CreateProperty(ctx context.Context, arg CreatePropertyParams) (Property, error) {
	var p Property
	err := q.db.QueryRowContext(ctx, createProperty, arg.UserID, arg.Label, arg.Address).
		Scan(&p.ID, &p.UserID, &p.Label, &p.Address, &p.CreatedAt)
	return p, err
}

const getPropertyByIDAndUserID = `
SELECT id, user_id, label, address, created_at
FROM properties WHERE id = $1 AND user_id = $2`

func (q *Queries) GetPropertyByIDAndUserID(ctx context.Context, id, userID uuid.UUID) (Property, error) {
	var p Property
	err := q.db.QueryRowContext(ctx, getPropertyByIDAndUserID, id, userID).
		Scan(&p.ID, &p.UserID, &p.Label, &p.Address, &p.CreatedAt)
	return p, err
}

const listPropertiesByUserID = `
SELECT id, user_id, label, address, created_at
FROM properties WHERE user_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListPropertiesByUserID(ctx context.Context, userID uuid.UUID) ([]Property, error) {
	rows, err := q.db.QueryContext(ctx, listPropertiesByUserID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.UserID, &p.Label, &p.Address, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const deleteProperty = `DELETE FROM properties WHERE id = $1 AND user_id = $2`

func (q *Queries) DeleteProperty(ctx context.Context, id, userID uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, deleteProperty, id, userID)
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
