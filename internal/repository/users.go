package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, name, stripe_customer_id,
	stripe_subscription_id, tier, subscription_status, period_start,
	period_end, renewal_reference, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.StripeCustomerID,
		&u.StripeSubscriptionID, &u.Tier, &u.SubscriptionStatus,
		&u.PeriodStart, &u.PeriodEnd, &u.RenewalReference,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams contains the fields for inserting a new user. New users
// start on the free tier with an active 30-day rolling period.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	Tier         string
	Status       string
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

const createUser = `
INSERT INTO users (email, password_hash, name, tier, subscription_status, period_start, period_end)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Email, arg.PasswordHash, arg.Name, arg.Tier, arg.Status,
		arg.PeriodStart, arg.PeriodEnd,
	)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByStripeCustomerID = `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, customerID string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByStripeCustomerID, customerID))
}

// GetUserByIDForUpdate locks the user row for the duration of the enclosing
// transaction. The usage commit takes this lock to serialize concurrent
// commits per user; call it only through Queries bound to a transaction.
const getUserByIDForUpdate = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

func (q *Queries) GetUserByIDForUpdate(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByIDForUpdate, id))
}

// UpdateUserSubscriptionParams applies a full subscription transition in a
// single statement so readers never observe a partial tier/period update.
type UpdateUserSubscriptionParams struct {
	ID               uuid.UUID
	Tier             string
	Status           string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	RenewalReference sql.NullString
	SubscriptionID   sql.NullString
}

const updateUserSubscription = `
UPDATE users
SET tier = $2, subscription_status = $3, period_start = $4, period_end = $5,
    renewal_reference = $6, stripe_subscription_id = $7, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateUserSubscription(ctx context.Context, arg UpdateUserSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, updateUserSubscription,
		arg.ID, arg.Tier, arg.Status, arg.PeriodStart, arg.PeriodEnd,
		arg.RenewalReference, arg.SubscriptionID)
	return err
}

const updateUserSubscriptionStatus = `
UPDATE users SET subscription_status = $2, updated_at = now() WHERE id = $1`

func (q *Queries) UpdateUserSubscriptionStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := q.db.ExecContext(ctx, updateUserSubscriptionStatus, id, status)
	return err
}

const updateUserStripeCustomer = `
UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1`

func (q *Queries) UpdateUserStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := q.db.ExecContext(ctx, updateUserStripeCustomer, id, customerID)
	return err
}

// ListLapsedPaidUsers returns users whose paid entitlement has run out:
// cancelled or past_due subscriptions past their period end that still
// carry a paid tier. The downgrade job moves them to free.
const listLapsedPaidUsers = `
SELECT ` + userColumns + `
FROM users
WHERE tier <> 'free'
  AND subscription_status IN ('cancelled', 'past_due')
  AND period_end <= $1
ORDER BY period_end
LIMIT $2`

func (q *Queries) ListLapsedPaidUsers(ctx context.Context, before time.Time, limit int64) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listLapsedPaidUsers, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.StripeCustomerID,
			&u.StripeSubscriptionID, &u.Tier, &u.SubscriptionStatus,
			&u.PeriodStart, &u.PeriodEnd, &u.RenewalReference,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// Sessions
// =============================================================================

const createSession = `
INSERT INTO sessions (user_id, token_hash, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, token_hash, expires_at, created_at`

func (q *Queries) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (Session, error) {
	var s Session
	err := q.db.QueryRowContext(ctx, createSession, userID, tokenHash, expiresAt).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const getSessionByTokenHash = `
SELECT id, user_id, token_hash, expires_at, created_at
FROM sessions WHERE token_hash = $1`

func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	var s Session
	err := q.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const deleteSessionByTokenHash = `DELETE FROM sessions WHERE token_hash = $1`

func (q *Queries) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionByTokenHash, tokenHash)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at < now()`

func (q *Queries) DeleteExpiredSessions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredSessions)
	return err
}
