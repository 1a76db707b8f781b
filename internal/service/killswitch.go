// Package service contains the business logic layer.
//
// This file implements the submission kill switch: an operator-controlled
// gate that refuses new diagnostic submissions while leaving reads,
// billing, and already-running analyses untouched. Every state change is
// written to the audit trail.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/metrics"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// KillSwitchService controls whether new diagnostic submissions are accepted.
type KillSwitchService interface {
	// Enabled reports whether submissions are currently accepted.
	Enabled() bool

	// Status returns the current switch state for the admin endpoint.
	Status() domain.KillSwitchStatus

	// Disable stops accepting new submissions. Idempotent.
	Disable(ctx context.Context, actorID uuid.UUID, reason string) error

	// Enable resumes accepting submissions. Idempotent.
	Enable(ctx context.Context, actorID uuid.UUID, reason string) error
}

// =============================================================================
// Implementation
// =============================================================================

type killSwitchService struct {
	queries *repository.Queries
	logger  *slog.Logger

	mu        sync.RWMutex
	disabled  bool
	changedAt time.Time
	changedBy uuid.UUID
	reason    string
}

// NewKillSwitchService creates a KillSwitchService. Submissions start
// enabled; the switch is process-local and resets on restart.
func NewKillSwitchService(queries *repository.Queries, logger *slog.Logger) KillSwitchService {
	metrics.SubmissionsDisabled.Set(0)
	return &killSwitchService{
		queries: queries,
		logger:  logger,
	}
}

func (s *killSwitchService) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled
}

func (s *killSwitchService) Status() domain.KillSwitchStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := domain.KillSwitchStatus{
		SubmissionsEnabled: !s.disabled,
		Reason:             s.reason,
	}
	if !s.changedAt.IsZero() {
		t := s.changedAt
		status.ChangedAt = &t
		status.ChangedBy = s.changedBy
	}
	return status
}

func (s *killSwitchService) Disable(ctx context.Context, actorID uuid.UUID, reason string) error {
	return s.set(ctx, actorID, reason, true)
}

func (s *killSwitchService) Enable(ctx context.Context, actorID uuid.UUID, reason string) error {
	return s.set(ctx, actorID, reason, false)
}

func (s *killSwitchService) set(ctx context.Context, actorID uuid.UUID, reason string, disable bool) error {
	const op = "KillSwitchService.Set"

	s.mu.Lock()
	changed := s.disabled != disable
	s.disabled = disable
	if changed {
		s.changedAt = time.Now().UTC()
		s.changedBy = actorID
		s.reason = reason
	}
	s.mu.Unlock()

	if !changed {
		return nil
	}

	action := "kill_switch.enable_submissions"
	gauge := 0.0
	if disable {
		action = "kill_switch.disable_submissions"
		gauge = 1.0
	}
	metrics.SubmissionsDisabled.Set(gauge)

	s.logger.Warn("submission kill switch changed",
		"submissions_enabled", !disable,
		"actor_id", actorID,
		"reason", reason,
	)

	// The in-memory flip already took effect; an audit write failure is
	// reported to the caller but does not revert the switch.
	if _, err := s.queries.CreateAuditEvent(ctx, repository.CreateAuditEventParams{
		ActorID: actorID,
		Action:  action,
		Detail:  reason,
	}); err != nil {
		return domain.Internal(err, op, "Failed to record audit event")
	}

	return nil
}

var _ KillSwitchService = (*killSwitchService)(nil)
