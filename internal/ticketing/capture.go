package ticketing

import (
	"context"
	"errors"
	"fmt"

	"github.com/applauz/theatre-ticketing/internal/model"
)

// CreateIntent returns a confirmable payment intent for a PENDING
// order.  When an INITIATED or FAILED payment already exists and its
// intent is still confirmable on the gateway, that intent is reused
// instead of minting a duplicate; a FAILED attempt being retried is
// flipped back to INITIATED.
func (e *Engine) CreateIntent(ctx context.Context, orderID, userID uint64) (PaymentIntent, error) {
	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return PaymentIntent{}, err
	}
	if order.UserID != userID {
		return PaymentIntent{}, ErrUnauthorized
	}
	if order.Status != OrderPending {
		return PaymentIntent{}, invalidState("order is %s, payment can only start on a pending order", order.Status)
	}

	if open, err := e.store.OpenPayment(ctx, orderID); err == nil {
		intent, ok, gerr := e.gateway.Reusable(ctx, open.StripePaymentIntentID)
		if gerr != nil {
			return PaymentIntent{}, &GatewayError{Op: "retrieve intent", Err: gerr}
		}
		if ok {
			if open.Status == PaymentFailed {
				if _, err := e.store.SetPaymentStatus(ctx, open.ID, PaymentFailed, PaymentInitiated); err != nil {
					return PaymentIntent{}, err
				}
			}
			return intent, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return PaymentIntent{}, err
	}

	intent, err := e.gateway.CreateIntent(ctx, orderID, order.TotalAmountCents)
	if err != nil {
		return PaymentIntent{}, &GatewayError{Op: "create intent", Err: err}
	}
	payment := &model.Payment{
		OrderID:               orderID,
		Status:                PaymentInitiated,
		AmountCents:           order.TotalAmountCents,
		StripePaymentIntentID: intent.ID,
	}
	if err := e.store.CreatePayment(ctx, payment); err != nil {
		return PaymentIntent{}, err
	}
	return intent, nil
}

// ConfirmPayment is the synchronous capture entry point: the client
// confirmed the intent with the provider and now asks the platform to
// reconcile.  The gateway is consulted for the intent's real state
// before anything local changes; the async webhook path lands on the
// same Capture below, so both paths stay idempotent with each other.
func (e *Engine) ConfirmPayment(ctx context.Context, orderID uint64, intentID string, userID uint64) (*model.Order, error) {
	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrUnauthorized
	}
	if order.Status == OrderPaid {
		return order, nil
	}
	if order.Status != OrderPending {
		return nil, invalidState("order is %s and cannot be paid", order.Status)
	}
	payment, err := e.store.PaymentByIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("payment intent %s: %w", intentID, err)
	}
	if payment.OrderID != orderID {
		return nil, fmt.Errorf("payment intent %s does not belong to order %d: %w", intentID, orderID, ErrConflict)
	}
	ok, err := e.gateway.Confirmed(ctx, intentID)
	if err != nil {
		return nil, &GatewayError{Op: "confirm", Err: err}
	}
	if !ok {
		return nil, invalidState("payment has not been confirmed by the provider")
	}
	if err := e.Capture(ctx, orderID, intentID); err != nil {
		return nil, err
	}
	return e.store.Order(ctx, orderID)
}

// Capture is the one place an order becomes PAID: inside a single
// transaction it marks the payment SUCCEEDED, flips the order, re-runs
// the authoritative seat check per item via conditional decrement, and
// mints the tickets.  Because time passed since the advisory check at
// order creation, the re-check is mandatory; when a faster buyer
// consumed the seats the transaction rolls back entirely and the
// payment is compensated to FAILED, surfacing CaptureRevertedError so
// the captured funds get refunded operationally.  Calling Capture on
// an already-PAID order is a no-op, which is what makes webhook
// redelivery safe.
func (e *Engine) Capture(ctx context.Context, orderID uint64, intentID string) error {
	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == OrderPaid {
		return nil
	}
	if order.Status != OrderPending {
		return invalidState("order is %s and cannot be captured", order.Status)
	}
	payment, err := e.store.PaymentByIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("payment intent %s: %w", intentID, err)
	}
	if payment.OrderID != orderID {
		return fmt.Errorf("payment intent %s does not belong to order %d: %w", intentID, orderID, ErrConflict)
	}

	err = e.store.Atomically(ctx, func(tx Store) error {
		if _, err := tx.SetPaymentStatus(ctx, payment.ID, payment.Status, PaymentSucceeded); err != nil {
			return err
		}
		ok, err := tx.SetOrderStatus(ctx, orderID, OrderPending, OrderPaid)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent capture won; roll back our payment flip and
			// let the winner's state stand.
			return errAlreadyCaptured
		}
		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.ReserveSeats(ctx, it.PerformanceID, it.Quantity); err != nil {
				return err
			}
			tickets := make([]model.Ticket, 0, it.Quantity)
			for i := uint32(0); i < it.Quantity; i++ {
				code, err := NewTicketCode()
				if err != nil {
					return err
				}
				tickets = append(tickets, model.Ticket{
					OrderItemID: it.ID,
					Code:        code,
					Status:      TicketNotScanned,
				})
			}
			if err := tx.InsertTickets(ctx, tickets); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, errAlreadyCaptured) {
		return nil
	}

	var insufficient *InsufficientSeatsError
	if errors.As(err, &insufficient) {
		// The transaction rolled back, so the payment row still holds
		// its pre-capture status; flip it to FAILED and leave the
		// order PENDING.
		if _, cerr := e.store.SetPaymentStatus(ctx, payment.ID, payment.Status, PaymentFailed); cerr != nil {
			return fmt.Errorf("compensate payment %d after failed capture: %v (capture error: %w)", payment.ID, cerr, err)
		}
		return &CaptureRevertedError{OrderID: orderID, Cause: insufficient}
	}
	return err
}

// errAlreadyCaptured aborts a capture transaction when another capture
// for the same order committed first.  It never escapes Capture.
var errAlreadyCaptured = errors.New("order already captured")
