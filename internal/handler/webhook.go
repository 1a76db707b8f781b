// Package handler contains HTTP handlers for the Fixlens API.
//
// This file implements the Stripe webhook handler for processing billing
// events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is via the Stripe webhook signature.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/service"
)

// webhookBodyLimit caps webhook payloads (Stripe events are small).
const webhookBodyLimit = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing service.BillingService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billing service.BillingService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billing,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC; no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// The webhook and the client-side verify call converge on the same settle
// path, so a replayed or out-of-order delivery is acknowledged without
// reapplying the tier change. A 400 is returned only for unreadable or
// unsigned payloads; processing errors return 500 so Stripe retries.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")

	if err := h.billing.HandleWebhook(r.Context(), body, signature); err != nil {
		if domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			h.logger.Warn("webhook signature verification failed", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.logger.Error("webhook processing failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
