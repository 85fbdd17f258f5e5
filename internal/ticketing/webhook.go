package ticketing

import (
	"context"
	"errors"
	"fmt"

	"github.com/applauz/theatre-ticketing/internal/model"
)

// Webhook reconciliation: asynchronous gateway events land on the same
// state machine as the synchronous paths.  Every handler here is
// idempotent: redelivery observes the already-applied state and no-ops,
// so the HTTP layer can always acknowledge a parsed event and stop
// upstream retries.

// ApplyPaymentSucceeded reconciles a payment_succeeded event.  The
// order id comes from intent metadata.  If the order is already PAID
// the event is a redelivery and nothing happens; otherwise the regular
// capture path runs, including its seat re-check and possible
// compensation.  A succeeded intent the platform has no payment row
// for (e.g. the create-intent response was lost) gets one created
// before capture so the join key exists.
func (e *Engine) ApplyPaymentSucceeded(ctx context.Context, orderID uint64, intentID string) error {
	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == OrderPaid {
		return nil
	}
	if _, err := e.store.PaymentByIntent(ctx, intentID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		payment := &model.Payment{
			OrderID:               orderID,
			Status:                PaymentInitiated,
			AmountCents:           order.TotalAmountCents,
			StripePaymentIntentID: intentID,
		}
		if err := e.store.CreatePayment(ctx, payment); err != nil {
			return err
		}
	}
	return e.Capture(ctx, orderID, intentID)
}

// ApplyPaymentFailed marks the intent's local payment FAILED.  Only an
// INITIATED payment flips; anything else means the failure was already
// recorded or superseded and the event is stale.
func (e *Engine) ApplyPaymentFailed(ctx context.Context, intentID string) error {
	payment, err := e.store.PaymentByIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = e.store.SetPaymentStatus(ctx, payment.ID, PaymentInitiated, PaymentFailed)
	return err
}

// ApplyChargeRefunded reconciles a charge_refunded event: the refund
// already happened on the gateway, so only the local side effects are
// applied: order and payment to REFUNDED, unscanned tickets flipped,
// seats released, notification emitted.  Replaying the event finds the
// order already REFUNDED and stops, so seats are incremented exactly
// once.
func (e *Engine) ApplyChargeRefunded(ctx context.Context, intentID string) error {
	payment, err := e.store.PaymentByIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("payment intent %s: %w", intentID, err)
	}
	order, err := e.store.Order(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == OrderRefunded || payment.Status == PaymentRefunded {
		return nil
	}
	if order.Status != OrderPaid {
		// A refund for an order that never completed capture; record
		// the payment state and leave the order alone.
		_, err = e.store.SetPaymentStatus(ctx, payment.ID, payment.Status, PaymentRefunded)
		return err
	}
	refunded, err := e.applyRefund(ctx, order, payment)
	if err != nil {
		return err
	}
	e.publishRefund(ctx, order, "gateway charge refunded", refunded)
	return nil
}
