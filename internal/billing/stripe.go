// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CheckoutSession is the subset of a Stripe Checkout session the
// application acts on. The session ID doubles as the provider-unique
// payment reference used for idempotent settlement.
type CheckoutSession struct {
	ID             string // provider reference
	URL            string // hosted checkout page
	PaymentPaid    bool   // payment_status == "paid"
	AmountCents    int64
	PriceID        string
	SubscriptionID string // set once the checkout created a subscription
}

// Gateway defines the interface for payment provider operations.
type Gateway interface {
	// CreateCustomer creates a new Stripe customer for the given email.
	CreateCustomer(email, name string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// The returned session carries the hosted URL and the reference.
	CreateCheckoutSession(customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error)

	// GetCheckoutSession retrieves a Checkout session by its reference for
	// payment verification.
	GetCheckoutSession(sessionID string) (*CheckoutSession, error)

	// CancelSubscription sets a subscription to cancel at period end.
	CancelSubscription(subscriptionID string) error

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// TierForPriceID returns the subscription tier for a given Stripe price ID.
	TierForPriceID(priceID string) string

	// PriceIDForTier returns the Stripe price ID for a paid tier, or "" for
	// unknown or unpurchasable tiers.
	PriceIDForTier(tier string) string
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	ProMonthlyPriceID      string
	BusinessMonthlyPriceID string
}

// stripeGateway is the concrete implementation of Gateway.
type stripeGateway struct {
	webhookSecret string
	prices        PriceConfig
	priceToTier   map[string]string // maps price ID -> tier name
	tierToPrice   map[string]string // maps tier name -> price ID
}

// NewStripeGateway creates a new Stripe billing gateway.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The prices configure which Stripe price IDs map to which tiers.
func NewStripeGateway(secretKey, webhookSecret string, prices PriceConfig) Gateway {
	stripe.Key = secretKey

	priceToTier := make(map[string]string)
	tierToPrice := make(map[string]string)
	if prices.ProMonthlyPriceID != "" {
		priceToTier[prices.ProMonthlyPriceID] = "pro"
		tierToPrice["pro"] = prices.ProMonthlyPriceID
	}
	if prices.BusinessMonthlyPriceID != "" {
		priceToTier[prices.BusinessMonthlyPriceID] = "business"
		tierToPrice["business"] = prices.BusinessMonthlyPriceID
	}

	return &stripeGateway{
		webhookSecret: webhookSecret,
		prices:        prices,
		priceToTier:   priceToTier,
		tierToPrice:   tierToPrice,
	}
}

func (g *stripeGateway) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(customerID, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &CheckoutSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

func (g *stripeGateway) GetCheckoutSession(sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("line_items")
	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get checkout session: %w", err)
	}

	cs := &CheckoutSession{
		ID:          sess.ID,
		URL:         sess.URL,
		PaymentPaid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountCents: sess.AmountTotal,
	}
	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 && sess.LineItems.Data[0].Price != nil {
		cs.PriceID = sess.LineItems.Data[0].Price.ID
	}
	if sess.Subscription != nil {
		cs.SubscriptionID = sess.Subscription.ID
	}
	return cs, nil
}

func (g *stripeGateway) CancelSubscription(subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	_, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (g *stripeGateway) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (g *stripeGateway) TierForPriceID(priceID string) string {
	if tier, ok := g.priceToTier[priceID]; ok {
		return tier
	}
	return ""
}

func (g *stripeGateway) PriceIDForTier(tier string) string {
	if priceID, ok := g.tierToPrice[tier]; ok {
		return priceID
	}
	return ""
}
