package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts,
	scheduled_at, started_at, completed_at, error_message, created_at, updated_at`

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.ScheduledAt, &j.StartedAt,
		&j.CompletedAt, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

type EnqueueJobParams struct {
	JobType     string
	Payload     json.RawMessage
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

const enqueueJob = `
INSERT INTO jobs (job_type, payload, priority, max_attempts, scheduled_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + jobColumns

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, enqueueJob,
		arg.JobType, arg.Payload, arg.Priority, arg.MaxAttempts, arg.ScheduledAt)
	return scanJob(row)
}

const dequeueJob = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending' AND scheduled_at <= now()
ORDER BY priority DESC, scheduled_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

// DequeueJob claims the next runnable job. SKIP LOCKED lets concurrent
// workers each grab a different row. Only call inside a transaction.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, dequeueJob))
}

const updateJobStarted = `
UPDATE jobs
SET status = 'running', started_at = now(), attempts = attempts + 1, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobStarted, id)
	return err
}

const updateJobCompleted = `
UPDATE jobs
SET status = 'completed', completed_at = now(), updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobCompleted, id)
	return err
}

type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
}

// updateJobFailed reschedules with exponential backoff while attempts
// remain, otherwise marks the job failed for good.
const updateJobFailed = `
UPDATE jobs
SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
    scheduled_at = CASE WHEN attempts >= max_attempts THEN scheduled_at
                        ELSE now() + (interval '1 minute' * power(2, attempts)) END,
    error_message = $2,
    updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, updateJobFailed, arg.ID, arg.ErrorMessage)
	return err
}

const recoverStaleJobs = `
UPDATE jobs
SET status = 'pending', started_at = NULL, updated_at = now()
WHERE status = 'running' AND started_at < now() - ($1 * interval '1 second')`

// RecoverStaleJobs resets jobs stuck in running longer than the threshold,
// which happens when a worker dies mid-job.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, recoverStaleJobs, thresholdSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
