// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements subscription billing endpoints backed by Stripe
// Checkout.
//
// Routes handled:
//   - POST /api/billing/checkout -> CreateCheckout
//   - POST /api/billing/verify   -> Verify
//   - POST /api/billing/cancel   -> Cancel
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/fixlens/fixlens/internal/auth"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/service"
)

// BillingHandler handles billing and subscription management HTTP requests.
type BillingHandler struct {
	billing service.BillingService
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing service.BillingService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billing,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
// All routes require an authenticated user.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/verify", requireUser(http.HandlerFunc(h.Verify)))
	mux.Handle("POST /api/billing/cancel", requireUser(http.HandlerFunc(h.Cancel)))
}

// =============================================================================
// POST /api/billing/checkout
// =============================================================================

type checkoutRequest struct {
	Tier string `json:"tier"`
}

// CreateCheckout opens a Stripe Checkout session for a paid tier and
// returns the hosted payment URL plus the transaction reference.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "BillingHandler.CreateCheckout"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tier, err := domain.ParseTier(strings.TrimSpace(req.Tier))
	if err != nil || tier == domain.TierFree {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "tier must be a paid plan"))
		return
	}

	result, err := h.billing.InitializeCheckout(r.Context(), user.ID, tier)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"checkout_url": result.CheckoutURL,
		"reference":    result.Reference,
	})
}

// =============================================================================
// POST /api/billing/verify
// =============================================================================

type verifyRequest struct {
	Reference string `json:"reference"`
}

// Verify confirms a payment with the gateway and settles it. Replays and
// unknown references are safe; the settled state is reported either way.
// The client return from Checkout calls this, but the webhook converges on
// the same settle path, so neither needs to arrive first.
func (h *BillingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.billing.Verify(r.Context(), strings.TrimSpace(req.Reference))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": string(result.Status)})
}

// =============================================================================
// POST /api/billing/cancel
// =============================================================================

// Cancel marks the subscription cancelled at period end. The paid tier
// stays in effect until the current period expires.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.billing.Cancel(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
