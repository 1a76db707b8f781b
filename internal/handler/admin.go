// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements the admin endpoints: the platform-wide submission
// kill switch and the audit log behind it.
//
// Routes handled:
//   - GET  /admin/kill-switch  -> KillSwitchStatus
//   - POST /admin/kill-switch  -> SetKillSwitch
//   - GET  /admin/audit-events -> AuditEvents
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/google/uuid"
)

// defaultAuditEventLimit bounds the audit log listing.
const defaultAuditEventLimit = 50

// AdminHandler handles admin HTTP requests.
type AdminHandler struct {
	killSwitch service.KillSwitchService
	repo       *repository.Queries
	logger     *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(killSwitch service.KillSwitchService, repo *repository.Queries, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		killSwitch: killSwitch,
		repo:       repo,
		logger:     logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/kill-switch", requireAdmin(http.HandlerFunc(h.KillSwitchStatus)))
	mux.Handle("POST /admin/kill-switch", requireAdmin(http.HandlerFunc(h.SetKillSwitch)))
	mux.Handle("GET /admin/audit-events", requireAdmin(http.HandlerFunc(h.AuditEvents)))
}

// killSwitchStatusResponse is the admin view of the submission gate.
type killSwitchStatusResponse struct {
	Enabled   bool       `json:"enabled"`
	ChangedAt *time.Time `json:"changed_at,omitempty"`
	ChangedBy string     `json:"changed_by,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

func killSwitchResponse(status domain.KillSwitchStatus) killSwitchStatusResponse {
	resp := killSwitchStatusResponse{
		Enabled:   status.SubmissionsEnabled,
		ChangedAt: status.ChangedAt,
		Reason:    status.Reason,
	}
	if status.ChangedBy != uuid.Nil {
		resp.ChangedBy = status.ChangedBy.String()
	}
	return resp
}

// KillSwitchStatus reports whether diagnostic submissions are enabled.
func (h *AdminHandler) KillSwitchStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, killSwitchResponse(h.killSwitch.Status()))
}

type setKillSwitchRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// SetKillSwitch enables or disables diagnostic submissions platform-wide.
// Every toggle is audited with the acting admin. Setting the current state
// again succeeds without a new audit entry.
func (h *AdminHandler) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromRequest(r)
	if actor == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req setKillSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var err error
	if req.Enabled {
		err = h.killSwitch.Enable(r.Context(), actor.ID, req.Reason)
	} else {
		err = h.killSwitch.Disable(r.Context(), actor.ID, req.Reason)
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, killSwitchResponse(h.killSwitch.Status()))
}

// auditEventResponse is one audit log entry.
type auditEventResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEvents lists recent administrative actions, newest first.
func (h *AdminHandler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.AuditEvents"

	limit := int64(defaultAuditEventLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 500 {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	events, err := h.repo.ListAuditEvents(r.Context(), limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to list audit events"))
		return
	}

	items := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, auditEventResponse{
			ID:        e.ID.String(),
			ActorID:   e.ActorID.String(),
			Action:    e.Action,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"audit_events": items})
}
