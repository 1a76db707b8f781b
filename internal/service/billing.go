// Package service contains the business logic layer.
//
// This file implements the subscription tier synchronizer. Payments settle
// through one idempotent path keyed on the provider-unique checkout
// reference: the webhook and the client-driven verify call both converge on
// settle, and a row lock on the transaction guarantees the tier transition
// is applied exactly once no matter how many times or in which order the
// two arrive.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fixlens/fixlens/internal/billing"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/metrics"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// DowngradeBatchSize bounds how many lapsed subscriptions a single
// downgrade pass processes.
const DowngradeBatchSize = 500

// =============================================================================
// Interface Definition
// =============================================================================

// BillingService synchronizes subscription tiers with the payment provider.
type BillingService interface {
	// InitializeCheckout starts a paid-tier purchase and returns the hosted
	// checkout URL plus the reference the client verifies with later.
	// Returns domain.EINVALID for tiers that cannot be purchased.
	InitializeCheckout(ctx context.Context, userID uuid.UUID, tier domain.Tier) (*domain.CheckoutResult, error)

	// Verify settles a payment by its reference. Idempotent: re-verifying a
	// settled reference reports success without reapplying the transition.
	// An unknown reference verifies as failed, not as an error.
	Verify(ctx context.Context, reference string) (*domain.VerifyResult, error)

	// HandleWebhook verifies and processes a provider webhook delivery.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// Cancel marks the user's subscription cancelled. The paid tier stays
	// effective until the current period ends.
	Cancel(ctx context.Context, userID uuid.UUID) error

	// DowngradeLapsed durably moves users whose cancelled or past-due
	// subscription period has ended onto the free tier. Returns the number
	// of users downgraded.
	DowngradeLapsed(ctx context.Context) (int, error)
}

// =============================================================================
// Implementation
// =============================================================================

type billingService struct {
	db      *sql.DB
	queries *repository.Queries
	gateway billing.Gateway
	users   UserService
	logger  *slog.Logger

	successURL string
	cancelURL  string
	now        func() time.Time
}

// BillingConfig holds the redirect URLs for hosted checkout.
type BillingConfig struct {
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

// NewBillingService creates a new BillingService.
func NewBillingService(
	db *sql.DB,
	queries *repository.Queries,
	gateway billing.Gateway,
	users UserService,
	cfg BillingConfig,
	logger *slog.Logger,
) BillingService {
	return &billingService{
		db:         db,
		queries:    queries,
		gateway:    gateway,
		users:      users,
		logger:     logger,
		successURL: cfg.CheckoutSuccessURL,
		cancelURL:  cfg.CheckoutCancelURL,
		now:        time.Now,
	}
}

// InitializeCheckout starts a paid-tier purchase.
func (s *billingService) InitializeCheckout(ctx context.Context, userID uuid.UUID, tier domain.Tier) (*domain.CheckoutResult, error) {
	const op = "BillingService.InitializeCheckout"

	priceID := s.gateway.PriceIDForTier(tier.String())
	if priceID == "" {
		return nil, domain.Invalid(op, "tier cannot be purchased: "+tier.String())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Lazily create the provider-side customer on first checkout.
	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(user.Email, user.Name)
		if err != nil {
			return nil, domain.Wrap(err, domain.EPAYMENT, op, "Failed to create billing customer")
		}
		if err := s.users.UpdateStripeCustomer(ctx, userID, customerID); err != nil {
			return nil, err
		}
	}

	sess, err := s.gateway.CreateCheckoutSession(customerID, priceID, s.successURL, s.cancelURL)
	if err != nil {
		return nil, domain.Wrap(err, domain.EPAYMENT, op, "Failed to create checkout session")
	}

	if _, err := s.queries.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:        userID,
		Reference:     sess.ID,
		TierRequested: tier.String(),
	}); err != nil {
		return nil, domain.Internal(err, op, "Failed to record transaction")
	}

	s.logger.Info("checkout initialized",
		"user_id", userID, "tier", tier, "reference", sess.ID)

	return &domain.CheckoutResult{
		CheckoutURL: sess.URL,
		Reference:   sess.ID,
	}, nil
}

// Verify settles a payment by its reference.
func (s *billingService) Verify(ctx context.Context, reference string) (*domain.VerifyResult, error) {
	const op = "BillingService.Verify"

	if reference == "" {
		return &domain.VerifyResult{Status: domain.VerifyOutcomeFailed}, nil
	}

	// A reference we never issued verifies as failed; it is not an error
	// worth signaling, whether mistyped or guessed.
	if _, err := s.queries.GetTransactionByReference(ctx, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.VerifyResult{Status: domain.VerifyOutcomeFailed}, nil
		}
		return nil, domain.Internal(err, op, "Failed to look up transaction")
	}

	sess, err := s.gateway.GetCheckoutSession(reference)
	if err != nil {
		return nil, domain.Wrap(err, domain.EPAYMENT, op, "Failed to verify payment with provider")
	}

	return s.settle(ctx, reference, sess)
}

// HandleWebhook verifies and processes a provider webhook delivery.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "BillingService.HandleWebhook"

	event, err := s.gateway.VerifyWebhookSignature(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("invalid", "rejected").Inc()
		return domain.Unauthorized(op, "Invalid webhook signature")
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
			return domain.Invalid(op, "Malformed webhook payload")
		}

		result, err := s.Verify(ctx, sess.ID)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
			return err
		}
		metrics.WebhookEvents.WithLabelValues(string(event.Type), string(result.Status)).Inc()
		return nil

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
			return domain.Invalid(op, "Malformed webhook payload")
		}
		return s.handleCustomerEvent(ctx, event, customerID(inv.Customer), domain.SubscriptionStatusPastDue)

	case "invoice.payment_succeeded":
		// Recovery path: a paid renewal after a failed one moves the user
		// back to active before the downgrade sweep catches them.
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
			return domain.Invalid(op, "Malformed webhook payload")
		}
		return s.handleCustomerEvent(ctx, event, customerID(inv.Customer), domain.SubscriptionStatusActive)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
			return domain.Invalid(op, "Malformed webhook payload")
		}
		return s.handleCustomerEvent(ctx, event, customerID(sub.Customer), domain.SubscriptionStatusCancelled)

	default:
		// Unhandled event types are acknowledged so the provider stops
		// redelivering them.
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		s.logger.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

// handleCustomerEvent applies a subscription status reported by the
// provider for one of its customers. The tier is left alone: a past_due or
// cancelled user keeps the paid tier until the period ends, and the
// downgrade sweep makes the fall-back durable. Unknown customers and
// replays are acknowledged so the provider stops redelivering.
func (s *billingService) handleCustomerEvent(ctx context.Context, event stripe.Event, custID string, status domain.SubscriptionStatus) error {
	const op = "BillingService.HandleWebhook"

	if custID == "" {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		s.logger.Warn("webhook event carries no customer", "type", event.Type)
		return nil
	}

	user, err := s.queries.GetUserByStripeCustomerID(ctx, custID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
			s.logger.Warn("webhook event for unknown customer",
				"type", event.Type, "customer_id", custID)
			return nil
		}
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		return domain.Internal(err, op, "Failed to look up customer")
	}

	if user.SubscriptionStatus == string(status) {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		return nil
	}
	// Payment success only recovers a past_due subscription; it must not
	// resurrect one the user cancelled.
	if status == domain.SubscriptionStatusActive &&
		user.SubscriptionStatus != string(domain.SubscriptionStatusPastDue) {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		return nil
	}

	if err := s.queries.UpdateUserSubscriptionStatus(ctx, user.ID, string(status)); err != nil {
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "error").Inc()
		return domain.Internal(err, op, "Failed to update subscription status")
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type), "processed").Inc()
	s.logger.Info("subscription status updated from webhook",
		"type", event.Type, "user_id", user.ID, "status", status)
	return nil
}

// customerID extracts the ID from an expandable customer reference.
func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// settle applies a verified payment exactly once. The transaction row lock
// serializes the webhook against a concurrent client verify.
func (s *billingService) settle(ctx context.Context, reference string, sess *billing.CheckoutSession) (*domain.VerifyResult, error) {
	const op = "BillingService.Settle"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	txn, err := qtx.GetTransactionByReferenceForUpdate(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.VerifyResult{Status: domain.VerifyOutcomeFailed}, nil
		}
		return nil, domain.Internal(err, op, "Failed to lock transaction")
	}

	// Already settled: report the terminal state without reapplying.
	switch txn.Status {
	case string(domain.TransactionStatusSuccess):
		return &domain.VerifyResult{Status: domain.VerifyOutcomeSuccess}, nil
	case string(domain.TransactionStatusFailed):
		return &domain.VerifyResult{Status: domain.VerifyOutcomeFailed}, nil
	}

	if !sess.PaymentPaid {
		// Checkout not completed yet; the transaction stays open for a
		// later verify or the webhook.
		return &domain.VerifyResult{Status: domain.VerifyOutcomePending}, nil
	}

	tier := domain.Tier(s.gateway.TierForPriceID(sess.PriceID))
	if !tier.IsValid() {
		// The paid price maps to no known tier; fall back to what the user
		// asked for rather than leaving the payment dangling.
		tier = domain.Tier(txn.TierRequested)
	}
	if !tier.IsValid() || tier == domain.TierFree {
		if err := qtx.UpdateTransactionStatus(ctx, txn.ID, string(domain.TransactionStatusFailed)); err != nil {
			return nil, domain.Internal(err, op, "Failed to update transaction")
		}
		if err := tx.Commit(); err != nil {
			return nil, domain.Internal(err, op, "Failed to commit")
		}
		s.logger.Error("paid checkout resolves to no purchasable tier",
			"reference", reference, "price_id", sess.PriceID)
		return &domain.VerifyResult{Status: domain.VerifyOutcomeFailed}, nil
	}

	// Single-statement transition: tier, status, and period move together
	// so readers never observe partial subscription state. The provider
	// subscription ID is kept so Cancel can stop renewals at the source.
	period := domain.NewPeriod(s.now().UTC())
	if err := qtx.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		ID:               txn.UserID,
		Tier:             tier.String(),
		Status:           string(domain.SubscriptionStatusActive),
		PeriodStart:      period.Start,
		PeriodEnd:        period.End,
		RenewalReference: domain.ToNullString(reference),
		SubscriptionID:   domain.ToNullString(sess.SubscriptionID),
	}); err != nil {
		return nil, domain.Internal(err, op, "Failed to apply tier transition")
	}

	if err := qtx.UpdateTransactionStatus(ctx, txn.ID, string(domain.TransactionStatusSuccess)); err != nil {
		return nil, domain.Internal(err, op, "Failed to update transaction")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "Failed to commit")
	}

	metrics.SubscriptionChanges.WithLabelValues(tier.String()).Inc()
	s.logger.Info("subscription tier applied",
		"user_id", txn.UserID,
		"tier", tier,
		"reference", reference,
		"period_start", period.Start,
		"period_end", period.End,
	)

	return &domain.VerifyResult{Status: domain.VerifyOutcomeSuccess}, nil
}

// Cancel marks the subscription cancelled, paid through end of period.
func (s *billingService) Cancel(ctx context.Context, userID uuid.UUID) error {
	const op = "BillingService.Cancel"

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Tier == domain.TierFree {
		return domain.Invalid(op, "No paid subscription to cancel")
	}
	if user.Status == domain.SubscriptionStatusCancelled {
		return nil
	}

	// Stop provider-side renewals first: if Stripe refuses, the local
	// status stays untouched and the user can retry.
	if user.StripeSubscriptionID != "" {
		if err := s.gateway.CancelSubscription(user.StripeSubscriptionID); err != nil {
			return domain.Wrap(err, domain.EPAYMENT, op, "Failed to cancel subscription with the payment provider")
		}
	}

	if err := s.queries.UpdateUserSubscriptionStatus(ctx, userID, string(domain.SubscriptionStatusCancelled)); err != nil {
		return domain.Internal(err, op, "Failed to cancel subscription")
	}

	s.logger.Info("subscription cancelled",
		"user_id", userID, "tier", user.Tier, "paid_through", user.PeriodEnd)
	return nil
}

// DowngradeLapsed moves lapsed paid users onto the free tier.
func (s *billingService) DowngradeLapsed(ctx context.Context) (int, error) {
	const op = "BillingService.DowngradeLapsed"

	lapsed, err := s.queries.ListLapsedPaidUsers(ctx, s.now().UTC(), DowngradeBatchSize)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to list lapsed subscriptions")
	}

	downgraded := 0
	for _, row := range lapsed {
		period := domain.NewPeriod(s.now().UTC())
		if err := s.queries.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
			ID:          row.ID,
			Tier:        domain.TierFree.String(),
			Status:      string(domain.SubscriptionStatusActive),
			PeriodStart: period.Start,
			PeriodEnd:   period.End,
		}); err != nil {
			// Keep going; the next pass retries whoever failed.
			s.logger.Error("failed to downgrade lapsed subscription",
				"user_id", row.ID, "error", err)
			continue
		}
		metrics.SubscriptionChanges.WithLabelValues(domain.TierFree.String()).Inc()
		s.logger.Info("subscription downgraded to free",
			"user_id", row.ID, "previous_tier", row.Tier)
		downgraded++
	}

	return downgraded, nil
}

var _ BillingService = (*billingService)(nil)
