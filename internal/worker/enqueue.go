package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fixlens/fixlens/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeDowngradeSubscriptions = "downgrade_subscriptions"
	JobTypeCleanupSessions        = "cleanup_sessions"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// DowngradeSubscriptionsPayload is the payload for the periodic downgrade
// sweep. The sweep itself takes no parameters; the payload exists so the
// job row is self-describing.
type DowngradeSubscriptionsPayload struct {
	RequestedBy string `json:"requested_by,omitempty"` // "scheduler" or an admin email
}

// CleanupSessionsPayload is the payload for expired-session cleanup jobs.
type CleanupSessionsPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	// Marshal the payload to JSON
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	// Default parameters
	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	// Apply options
	for _, opt := range opts {
		opt(&params)
	}

	// Enqueue the job
	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueDowngradeSubscriptions enqueues a sweep that moves lapsed
// cancelled subscriptions back to the free tier. The handler reschedules
// itself, so this is normally called once at startup.
func EnqueueDowngradeSubscriptions(
	ctx context.Context,
	queries *repository.Queries,
	requestedBy string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := DowngradeSubscriptionsPayload{RequestedBy: requestedBy}
	return EnqueueJob(ctx, queries, JobTypeDowngradeSubscriptions, payload, opts...)
}

// EnqueueCleanupSessions enqueues an expired-session purge.
// The handler reschedules itself, so this is normally called once at startup.
func EnqueueCleanupSessions(
	ctx context.Context,
	queries *repository.Queries,
	requestedBy string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := CleanupSessionsPayload{RequestedBy: requestedBy}
	return EnqueueJob(ctx, queries, JobTypeCleanupSessions, payload, opts...)
}
