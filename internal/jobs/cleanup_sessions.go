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

// sessionCleanupInterval is how often expired sessions are purged.
const sessionCleanupInterval = 6 * time.Hour

// CleanupSessionsHandler purges expired sessions from the database.
// Expired sessions are already rejected at lookup; the purge keeps the
// table from growing without bound. Reschedules itself after every run.
type CleanupSessionsHandler struct {
	queries *repository.Queries
	users   service.UserService
	logger  *slog.Logger
}

// NewCleanupSessionsHandler creates a new handler for session cleanup jobs.
func NewCleanupSessionsHandler(
	queries *repository.Queries,
	users service.UserService,
	logger *slog.Logger,
) *CleanupSessionsHandler {
	return &CleanupSessionsHandler{
		queries: queries,
		users:   users,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *CleanupSessionsHandler) Type() string {
	return worker.JobTypeCleanupSessions
}

// Handle purges expired sessions and schedules the next purge.
func (h *CleanupSessionsHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.CleanupSessionsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	if err := h.users.DeleteExpiredSessions(ctx); err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}

	h.logger.Debug("expired sessions purged")

	if _, err := worker.EnqueueCleanupSessions(ctx, h.queries, "scheduler",
		worker.WithDelay(sessionCleanupInterval),
	); err != nil {
		return fmt.Errorf("reschedule session cleanup: %w", err)
	}

	return nil
}
