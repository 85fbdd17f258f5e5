// Package payment adapts the external Stripe payment-intent API to the
// engine's Gateway contract.  Every call carries a bounded timeout so
// a hung provider surfaces as an error instead of a stuck request.
package payment

import (
	"context"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/refund"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// StripeGateway implements ticketing.Gateway against Stripe.
type StripeGateway struct {
	publishableKey string
	webhookSecret  string
	currency       string
	timeout        time.Duration
}

// NewStripeGateway configures the package-level Stripe client and
// returns the gateway.  currency is the ISO code charged (e.g. "eur").
func NewStripeGateway(secretKey, publishableKey, webhookSecret, currency string, timeout time.Duration) *StripeGateway {
	stripe.Key = secretKey
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeGateway{
		publishableKey: publishableKey,
		webhookSecret:  webhookSecret,
		currency:       currency,
		timeout:        timeout,
	}
}

// PublishableKey is returned alongside client secrets so browsers can
// initialize Stripe.js.
func (g *StripeGateway) PublishableKey() string { return g.publishableKey }

// CreateIntent creates a payment intent for the order's total.  The
// order id is embedded in intent metadata; the webhook reconciler
// reads it back to find the order.
func (g *StripeGateway) CreateIntent(ctx context.Context, orderID uint64, amountCents uint32) (ticketing.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amountCents)),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.FormatUint(orderID, 10))
	pi, err := paymentintent.New(params)
	if err != nil {
		return ticketing.PaymentIntent{}, err
	}
	return ticketing.PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Reusable reports whether a previously created intent can still be
// confirmed by the client, so a payment retry does not mint a
// duplicate intent for the same order.
func (g *StripeGateway) Reusable(ctx context.Context, intentID string) (ticketing.PaymentIntent, bool, error) {
	pi, err := g.retrieve(ctx, intentID)
	if err != nil {
		return ticketing.PaymentIntent{}, false, err
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction:
		return ticketing.PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, true, nil
	}
	return ticketing.PaymentIntent{}, false, nil
}

// Confirmed reports whether the intent has succeeded on the gateway.
func (g *StripeGateway) Confirmed(ctx context.Context, intentID string) (bool, error) {
	pi, err := g.retrieve(ctx, intentID)
	if err != nil {
		return false, err
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

// Refund refunds the full captured amount of the intent.
func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	_, err := refund.New(params)
	return err
}

// ParseEvent verifies the webhook signature and parses the payload.
// A signature or parse failure must map to HTTP 400 at the boundary.
func (g *StripeGateway) ParseEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
}

func (g *StripeGateway) retrieve(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(intentID, params)
}
