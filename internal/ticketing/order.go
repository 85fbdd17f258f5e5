package ticketing

import (
	"context"
	"fmt"
	"time"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/queue"
)

// OrderItemRequest is one line of a purchase request.
type OrderItemRequest struct {
	PerformanceID uint64
	Quantity      uint32
}

// CreateOrder validates the request and persists a PENDING order with
// its items in one transaction.  The seat check here is advisory: it
// rejects obviously hopeless orders with a useful message but reserves
// nothing.  The authoritative check happens again at capture.  Unit
// prices are frozen from the performances' current prices so later
// price edits never change this order's total.
func (e *Engine) CreateOrder(ctx context.Context, userID, institutionID uint64, items []OrderItemRequest) (*model.Order, []model.OrderItem, error) {
	if len(items) == 0 {
		return nil, nil, invalidState("order must contain at least one item")
	}
	inst, err := e.store.Institution(ctx, institutionID)
	if err != nil {
		return nil, nil, fmt.Errorf("institution %d: %w", institutionID, err)
	}
	var total uint32
	orderItems := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if it.Quantity == 0 {
			return nil, nil, invalidState("quantity must be positive for performance %d", it.PerformanceID)
		}
		perf, err := e.store.PerformanceDetail(ctx, it.PerformanceID)
		if err != nil {
			return nil, nil, fmt.Errorf("performance %d: %w", it.PerformanceID, err)
		}
		if perf.InstitutionID != inst.ID {
			return nil, nil, fmt.Errorf("performance %d does not belong to institution %d: %w", it.PerformanceID, inst.ID, ErrConflict)
		}
		if perf.AvailableSeats < it.Quantity {
			return nil, nil, &InsufficientSeatsError{
				PerformanceID: it.PerformanceID,
				Requested:     it.Quantity,
				Remaining:     perf.AvailableSeats,
			}
		}
		total += perf.PriceCents * it.Quantity
		orderItems = append(orderItems, model.OrderItem{
			PerformanceID:  it.PerformanceID,
			Quantity:       it.Quantity,
			UnitPriceCents: perf.PriceCents,
		})
	}
	order := &model.Order{
		UserID:           userID,
		InstitutionID:    institutionID,
		Status:           OrderPending,
		TotalAmountCents: total,
	}
	err = e.store.Atomically(ctx, func(tx Store) error {
		return tx.CreateOrder(ctx, order, orderItems)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, orderItems, nil
}

// CancelOrder cancels a PENDING order owned by userID.  PAID orders
// cannot be self-cancelled; they go through the refund path.  A
// pending order should own no tickets, but any NOT_SCANNED ticket
// found is defensively invalidated and its seat released.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID uint64) (*model.Order, error) {
	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrUnauthorized
	}
	if order.Status == OrderPaid {
		return nil, invalidState("paid orders cannot be cancelled, request a refund instead")
	}
	if OrderTerminal(order.Status) {
		return nil, invalidState("order is already %s", order.Status)
	}
	err = e.store.Atomically(ctx, func(tx Store) error {
		if err := e.voidTickets(ctx, tx, orderID, TicketInvalid); err != nil {
			return err
		}
		ok, err := tx.SetOrderStatus(ctx, orderID, OrderPending, OrderCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("order is no longer pending")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	order.Status = OrderCancelled
	return order, nil
}

// RefundOrder refunds a PAID order owned by userID.  The whole order
// is all-or-nothing: one scanned ticket blocks the refund.  The
// gateway refund runs first; only after it succeeds are the local
// flips applied, so a gateway failure leaves no partial state.  The
// eligibility check and the flips are not covered by one lock, so a
// scan landing in between can still slip through; that narrow window
// is an accepted trade-off, not a defect.
func (e *Engine) RefundOrder(ctx context.Context, orderID, userID uint64, reason string) (*model.Order, error) {
	order, err := e.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrUnauthorized
	}
	if order.Status != OrderPaid {
		return nil, invalidState("only paid orders can be refunded, order is %s", order.Status)
	}
	tickets, err := e.store.TicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		if t.Status == TicketScanned {
			return nil, invalidState("ticket %d has already been scanned, order cannot be refunded", t.ID)
		}
	}
	payment, err := e.store.SucceededPayment(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("captured payment for order %d: %w", orderID, err)
	}
	if err := e.gateway.Refund(ctx, payment.StripePaymentIntentID); err != nil {
		return nil, &GatewayError{Op: "refund", Err: err}
	}
	refunded, err := e.applyRefund(ctx, order, payment)
	if err != nil {
		return nil, err
	}
	e.publishRefund(ctx, order, reason, refunded)
	order.Status = OrderRefunded
	return order, nil
}

// applyRefund performs the local side of a refund in one transaction:
// order -> REFUNDED, payment -> REFUNDED, every NOT_SCANNED ticket ->
// REFUNDED, and the matching seats released.  It is shared by the
// synchronous refund path and the charge_refunded webhook, which is
// what keeps the two idempotent with respect to each other.  It
// returns the number of tickets flipped.
func (e *Engine) applyRefund(ctx context.Context, order *model.Order, payment *model.Payment) (int, error) {
	var refunded int
	err := e.store.Atomically(ctx, func(tx Store) error {
		ok, err := tx.SetOrderStatus(ctx, order.ID, OrderPaid, OrderRefunded)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("order %d is no longer paid", order.ID)
		}
		if _, err := tx.SetPaymentStatus(ctx, payment.ID, PaymentSucceeded, PaymentRefunded); err != nil {
			return err
		}
		refunded, err = e.voidTicketsTx(ctx, tx, order.ID, TicketRefunded)
		return err
	})
	return refunded, err
}

// voidTicketsTx flips every NOT_SCANNED ticket of the order to the
// given terminal status and releases one seat per flipped ticket on
// the item's performance.  Tickets that already expired (INVALID) keep
// their status; their seats stay consumed.
func (e *Engine) voidTicketsTx(ctx context.Context, tx Store, orderID uint64, to string) (int, error) {
	items, err := tx.OrderItems(ctx, orderID)
	if err != nil {
		return 0, err
	}
	tickets, err := tx.TicketsByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	byItem := make(map[uint64]uint32)
	var flipped int
	for _, t := range tickets {
		if t.Status != TicketNotScanned {
			continue
		}
		ok, err := tx.SetTicketStatus(ctx, t.ID, TicketNotScanned, to, nil)
		if err != nil {
			return 0, err
		}
		if ok {
			byItem[t.OrderItemID]++
			flipped++
		}
	}
	for _, it := range items {
		if n := byItem[it.ID]; n > 0 {
			if err := tx.ReleaseSeats(ctx, it.PerformanceID, n); err != nil {
				return 0, err
			}
		}
	}
	return flipped, nil
}

// voidTickets is voidTicketsTx without the count, for the cancel path.
func (e *Engine) voidTickets(ctx context.Context, tx Store, orderID uint64, to string) error {
	_, err := e.voidTicketsTx(ctx, tx, orderID, to)
	return err
}

// publishRefund emits the order.refunded notification.  Publish
// failures are logged, never propagated: the refund itself is already
// committed.
func (e *Engine) publishRefund(ctx context.Context, order *model.Order, reason string, refundedTickets int) {
	ev := queue.OrderRefundedEvent{
		OrderID:          order.ID,
		UserID:           order.UserID,
		InstitutionID:    order.InstitutionID,
		TotalAmountCents: order.TotalAmountCents,
		Reason:           reason,
		RefundedTickets:  refundedTickets,
		RefundedAt:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := e.events.OrderRefunded(ctx, ev); err != nil {
		logPublishErr("order.refunded", err)
	}
}
