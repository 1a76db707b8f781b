// Package jobs contains background job handlers executed by the worker pool.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixlens/fixlens/internal/repository"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/fixlens/fixlens/internal/worker"
)

// downgradeSweepInterval is how often the lapsed-subscription sweep runs.
// Reads already degrade correctly via the effective tier; the sweep just
// makes the fall-back durable, so an hourly cadence is plenty.
const downgradeSweepInterval = time.Hour

// DowngradeSubscriptionsHandler processes the periodic sweep that moves
// cancelled subscriptions whose period has ended back to the free tier.
// The handler reschedules itself after every run.
type DowngradeSubscriptionsHandler struct {
	queries *repository.Queries
	billing service.BillingService
	logger  *slog.Logger
}

// NewDowngradeSubscriptionsHandler creates a new handler for downgrade sweep jobs.
func NewDowngradeSubscriptionsHandler(
	queries *repository.Queries,
	billing service.BillingService,
	logger *slog.Logger,
) *DowngradeSubscriptionsHandler {
	return &DowngradeSubscriptionsHandler{
		queries: queries,
		billing: billing,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *DowngradeSubscriptionsHandler) Type() string {
	return worker.JobTypeDowngradeSubscriptions
}

// Handle executes one downgrade sweep and schedules the next one.
func (h *DowngradeSubscriptionsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.DowngradeSubscriptionsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	count, err := h.billing.DowngradeLapsed(ctx)
	if err != nil {
		// Retryable; the next attempt resumes where this one stopped
		// because downgraded users no longer match the sweep query.
		return fmt.Errorf("downgrade lapsed subscriptions: %w", err)
	}

	if count > 0 {
		h.logger.Info("downgraded lapsed subscriptions", "count", count)
	}

	if err := h.reschedule(ctx); err != nil {
		// The sweep itself succeeded; losing the next run is the real
		// failure mode here, so report it for retry.
		return fmt.Errorf("reschedule downgrade sweep: %w", err)
	}

	return nil
}

func (h *DowngradeSubscriptionsHandler) reschedule(ctx context.Context) error {
	_, err := worker.EnqueueDowngradeSubscriptions(ctx, h.queries, "scheduler",
		worker.WithDelay(downgradeSweepInterval),
	)
	return err
}
