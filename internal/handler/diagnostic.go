// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements the diagnostic submission endpoints plus the
// read-only entitlement and usage endpoints.
//
// Routes handled:
//   - POST /api/diagnostics                      -> Submit
//   - GET  /api/diagnostics                      -> List
//   - GET  /api/diagnostics/{id}                 -> GetByID
//   - GET  /api/entitlements/{resource_type}     -> CheckEntitlement
//   - GET  /api/usage                            -> Usage
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/service"
	"github.com/google/uuid"
)

// DiagnosticHandler handles diagnostic submission and retrieval.
type DiagnosticHandler struct {
	diagnostics  service.DiagnosticService
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewDiagnosticHandler creates a new DiagnosticHandler.
func NewDiagnosticHandler(diagnostics service.DiagnosticService, entitlements service.EntitlementService, logger *slog.Logger) *DiagnosticHandler {
	return &DiagnosticHandler{
		diagnostics:  diagnostics,
		entitlements: entitlements,
		logger:       logger,
	}
}

// RegisterRoutes registers diagnostic routes on the provided mux.
// All routes require an authenticated user.
func (h *DiagnosticHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/diagnostics", requireUser(http.HandlerFunc(h.Submit)))
	mux.Handle("GET /api/diagnostics", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/diagnostics/{id}", requireUser(http.HandlerFunc(h.GetByID)))
	mux.Handle("GET /api/entitlements/{resource_type}", requireUser(http.HandlerFunc(h.CheckEntitlement)))
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Usage)))
}

// =============================================================================
// Response Types
// =============================================================================

// DiagnosticResponse is the public representation of a diagnostic.
type DiagnosticResponse struct {
	ID            string          `json:"id"`
	ResourceType  string          `json:"resource_type"`
	Status        string          `json:"status"`
	Description   string          `json:"description,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func diagnosticResponse(d *domain.Diagnostic) DiagnosticResponse {
	return DiagnosticResponse{
		ID:            d.ID.String(),
		ResourceType:  string(d.ResourceType),
		Status:        string(d.Status),
		Description:   d.Description,
		Summary:       d.Summary,
		Result:        d.Result,
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt,
		CompletedAt:   d.CompletedAt,
	}
}

// UsageSnapshotResponse reports consumption after a successful submission.
type UsageSnapshotResponse struct {
	ResourceType string `json:"resource_type"`
	Used         int64  `json:"used"`
	Limit        int64  `json:"limit"`
	Remaining    int64  `json:"remaining"`
	Tier         string `json:"tier"`
}

// EntitlementResponse is the evaluator's decision for one resource type.
type EntitlementResponse struct {
	ResourceType string     `json:"resource_type"`
	CanUse       bool       `json:"can_use"`
	Locked       bool       `json:"locked"`
	AtLimit      bool       `json:"at_limit"`
	Used         int64      `json:"used"`
	Limit        int64      `json:"limit"`
	Remaining    int64      `json:"remaining"`
	PeriodEnd    *time.Time `json:"period_end,omitempty"`
}

func entitlementResponse(e *domain.Entitlement) EntitlementResponse {
	return EntitlementResponse{
		ResourceType: string(e.Resource),
		CanUse:       e.CanUse,
		Locked:       e.Locked,
		AtLimit:      e.AtLimit,
		Used:         e.Used,
		Limit:        e.Limit,
		Remaining:    e.Remaining,
		PeriodEnd:    e.PeriodEnd,
	}
}

// =============================================================================
// POST /api/diagnostics
// =============================================================================

type submitDiagnosticRequest struct {
	ResourceType string `json:"resource_type"`
	PayloadRef   string `json:"payload_ref,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Submit runs a diagnostic end to end: entitlement check, AI analysis, and
// the atomic usage commit. The response carries the completed diagnostic
// and the post-commit usage snapshot.
func (h *DiagnosticHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req submitDiagnosticRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resource, err := domain.ParseResourceType(strings.TrimSpace(req.ResourceType))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("DiagnosticHandler.Submit", "Unknown resource_type"))
		return
	}

	result, err := h.diagnostics.Submit(r.Context(), domain.SubmitDiagnosticParams{
		UserID:       user.ID,
		ResourceType: resource,
		PayloadRef:   strings.TrimSpace(req.PayloadRef),
		Description:  strings.TrimSpace(req.Description),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"diagnostic_id": result.Diagnostic.ID.String(),
		"diagnostic":    diagnosticResponse(result.Diagnostic),
		"usage": UsageSnapshotResponse{
			ResourceType: string(result.Usage.Resource),
			Used:         result.Usage.Used,
			Limit:        result.Usage.Limit,
			Remaining:    result.Usage.Remaining,
			Tier:         string(result.Usage.Tier),
		},
	})
}

// =============================================================================
// GET /api/diagnostics/{id}
// =============================================================================

// GetByID returns a single diagnostic owned by the authenticated user.
func (h *DiagnosticHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("DiagnosticHandler.GetByID", "Invalid diagnostic ID"))
		return
	}

	diagnostic, err := h.diagnostics.GetByID(r.Context(), id, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"diagnostic": diagnosticResponse(diagnostic)})
}

// =============================================================================
// GET /api/diagnostics
// =============================================================================

// List returns a page of the user's diagnostics, newest first.
//
// Query parameters:
//   - status: optional comma-separated status filter (pending,completed,failed)
//   - limit:  page size, default 20, max 100
//   - offset: pagination offset
func (h *DiagnosticHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	params := domain.ListDiagnosticsParams{UserID: user.ID}

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			params.Statuses = append(params.Statuses, domain.DiagnosticStatus(strings.TrimSpace(s)))
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			ErrorResponse(w, r, h.logger, domain.Invalid("DiagnosticHandler.List", "limit must be a positive integer"))
			return
		}
		params.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			ErrorResponse(w, r, h.logger, domain.Invalid("DiagnosticHandler.List", "offset must be a non-negative integer"))
			return
		}
		params.Offset = n
	}

	result, err := h.diagnostics.List(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]DiagnosticResponse, 0, len(result.Diagnostics))
	for i := range result.Diagnostics {
		items = append(items, diagnosticResponse(&result.Diagnostics[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"diagnostics": items,
		"total":       result.Total,
		"limit":       result.Limit,
		"offset":      result.Offset,
	})
}

// =============================================================================
// GET /api/entitlements/{resource_type}
// =============================================================================

// CheckEntitlement returns the advisory quota decision for one resource
// type. A positive answer is not a reservation; the submission path
// re-checks under lock.
func (h *DiagnosticHandler) CheckEntitlement(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	resource, err := domain.ParseResourceType(r.PathValue("resource_type"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("DiagnosticHandler.CheckEntitlement", "Unknown resource_type"))
		return
	}

	entitlement, err := h.entitlements.Evaluate(r.Context(), user.ID, resource)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"entitlement": entitlementResponse(entitlement)})
}

// =============================================================================
// GET /api/usage
// =============================================================================

// Usage returns the current-period usage across every resource type.
func (h *DiagnosticHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	summary, err := h.entitlements.GetUsageSummary(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resources := make([]EntitlementResponse, 0, len(summary.Resources))
	for i := range summary.Resources {
		resources = append(resources, entitlementResponse(&summary.Resources[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tier":         string(summary.Tier),
		"tier_label":   summary.TierLabel,
		"status":       string(summary.Status),
		"period_start": summary.PeriodStart,
		"period_end":   summary.PeriodEnd,
		"resources":    resources,
	})
}
