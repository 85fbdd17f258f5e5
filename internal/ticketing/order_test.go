package ticketing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func futureStart() time.Time {
	return time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
}

func TestCreateOrderFreezesPrices(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	perfA := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 100)
	perfB := store.addPerformance(inst, "Macbeth", futureStart().Add(6*time.Hour), 120, 1800, 100)

	order, items, err := engine.CreateOrder(context.Background(), 7, inst, []OrderItemRequest{
		{PerformanceID: perfA, Quantity: 2},
		{PerformanceID: perfB, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, OrderPending, order.Status)
	assert.Equal(t, uint32(2*2500+1800), order.TotalAmountCents)
	assert.Equal(t, uint32(2500), items[0].UnitPriceCents)
	assert.Equal(t, uint32(1800), items[1].UnitPriceCents)
	assert.NotZero(t, order.ID)

	// Advisory check only: nothing is reserved at creation.
	assert.Equal(t, uint32(100), store.available(perfA))
	assert.Equal(t, uint32(100), store.available(perfB))
}

func TestCreateOrderSeatMessages(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	soldOut := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 0)
	almostGone := store.addPerformance(inst, "Macbeth", futureStart().Add(6*time.Hour), 120, 1800, 3)

	_, _, err := engine.CreateOrder(context.Background(), 7, inst, []OrderItemRequest{{PerformanceID: soldOut, Quantity: 1}})
	var insufficient *InsufficientSeatsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint32(0), insufficient.Remaining)
	assert.Contains(t, insufficient.Error(), "sold out")

	_, _, err = engine.CreateOrder(context.Background(), 7, inst, []OrderItemRequest{{PerformanceID: almostGone, Quantity: 5}})
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint32(3), insufficient.Remaining)
	assert.Contains(t, insufficient.Error(), "3")
}

func TestCreateOrderValidation(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	instA := store.addInstitution("Grand Theatre", "UTC", 100)
	instB := store.addInstitution("Opera House", "UTC", 50)
	perfB := store.addPerformance(instB, "Aida", futureStart(), 180, 4000, 50)

	_, _, err := engine.CreateOrder(context.Background(), 7, instA, nil)
	var invalid *InvalidStateError
	assert.ErrorAs(t, err, &invalid)

	_, _, err = engine.CreateOrder(context.Background(), 7, instA, []OrderItemRequest{{PerformanceID: perfB, Quantity: 0}})
	assert.ErrorAs(t, err, &invalid)

	// Performance at another venue than the one named in the order.
	_, _, err = engine.CreateOrder(context.Background(), 7, instA, []OrderItemRequest{{PerformanceID: perfB, Quantity: 1}})
	assert.ErrorIs(t, err, ErrConflict)

	_, _, err = engine.CreateOrder(context.Background(), 7, 999, []OrderItemRequest{{PerformanceID: perfB, Quantity: 1}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrder(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	orderID := store.addOrder(7, inst, OrderPending, 2500)

	order, err := engine.CancelOrder(context.Background(), orderID, 7)
	require.NoError(t, err)
	assert.Equal(t, OrderCancelled, order.Status)
	assert.Equal(t, OrderCancelled, store.orderStatus(orderID))

	// Already terminal.
	_, err = engine.CancelOrder(context.Background(), orderID, 7)
	var invalid *InvalidStateError
	assert.ErrorAs(t, err, &invalid)
}

func TestCancelOrderRejectsPaidAndForeign(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	paid := store.addOrder(7, inst, OrderPaid, 2500)
	pending := store.addOrder(7, inst, OrderPending, 2500)

	_, err := engine.CancelOrder(context.Background(), paid, 7)
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Msg, "refund")

	_, err = engine.CancelOrder(context.Background(), pending, 8)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelDefensivelyVoidsTicketsAndReleasesSeats(t *testing.T) {
	// A pending order should own no tickets; if any exist anyway they
	// are invalidated and their seats handed back.
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 98)
	orderID := store.addOrder(7, inst, OrderPending, 5000)
	itemID := store.addOrderItem(orderID, perf, 2, 2500)
	t1 := store.addTicket(itemID, "code-1", TicketNotScanned, nil)
	t2 := store.addTicket(itemID, "code-2", TicketNotScanned, nil)

	_, err := engine.CancelOrder(context.Background(), orderID, 7)
	require.NoError(t, err)
	assert.Equal(t, TicketInvalid, store.ticketStatus(t1))
	assert.Equal(t, TicketInvalid, store.ticketStatus(t2))
	assert.Equal(t, uint32(100), store.available(perf))
}

func TestRefundReleasesSeatsAndFlipsEverything(t *testing.T) {
	engine, store, gateway, events := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 2)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 0) // both seats sold
	orderID := store.addOrder(7, inst, OrderPaid, 5000)
	itemID := store.addOrderItem(orderID, perf, 2, 2500)
	t1 := store.addTicket(itemID, "code-1", TicketNotScanned, nil)
	t2 := store.addTicket(itemID, "code-2", TicketNotScanned, nil)
	payID := store.addPayment(orderID, PaymentSucceeded, "pi_captured", 5000)

	order, err := engine.RefundOrder(context.Background(), orderID, 7, "change of plans")
	require.NoError(t, err)

	assert.Equal(t, OrderRefunded, order.Status)
	assert.Equal(t, OrderRefunded, store.orderStatus(orderID))
	assert.Equal(t, PaymentRefunded, store.paymentStatus(payID))
	assert.Equal(t, TicketRefunded, store.ticketStatus(t1))
	assert.Equal(t, TicketRefunded, store.ticketStatus(t2))
	assert.Equal(t, uint32(2), store.available(perf))
	assert.Equal(t, []string{"pi_captured"}, gateway.refunds)

	require.Len(t, events.refunded, 1)
	assert.Equal(t, orderID, events.refunded[0].OrderID)
	assert.Equal(t, "change of plans", events.refunded[0].Reason)
	assert.Equal(t, 2, events.refunded[0].RefundedTickets)
}

func TestRefundBlockedByScannedTicket(t *testing.T) {
	engine, store, gateway, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 2)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 0)
	orderID := store.addOrder(7, inst, OrderPaid, 5000)
	itemID := store.addOrderItem(orderID, perf, 2, 2500)
	scannedAt := time.Now().UTC()
	store.addTicket(itemID, "code-1", TicketScanned, &scannedAt)
	store.addTicket(itemID, "code-2", TicketNotScanned, nil)
	store.addPayment(orderID, PaymentSucceeded, "pi_captured", 5000)

	_, err := engine.RefundOrder(context.Background(), orderID, 7, "")
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Msg, "scanned")
	assert.Empty(t, gateway.refunds)
	assert.Equal(t, OrderPaid, store.orderStatus(orderID))
}

func TestRefundGatewayFailureLeavesStateUntouched(t *testing.T) {
	engine, store, gateway, _ := newTestEngine()
	gateway.refundErr = errors.New("provider down")
	inst := store.addInstitution("Grand Theatre", "UTC", 2)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 0)
	orderID := store.addOrder(7, inst, OrderPaid, 2500)
	itemID := store.addOrderItem(orderID, perf, 1, 2500)
	tick := store.addTicket(itemID, "code-1", TicketNotScanned, nil)
	payID := store.addPayment(orderID, PaymentSucceeded, "pi_captured", 2500)

	_, err := engine.RefundOrder(context.Background(), orderID, 7, "")
	var gw *GatewayError
	require.ErrorAs(t, err, &gw)

	assert.Equal(t, OrderPaid, store.orderStatus(orderID))
	assert.Equal(t, PaymentSucceeded, store.paymentStatus(payID))
	assert.Equal(t, TicketNotScanned, store.ticketStatus(tick))
	assert.Equal(t, uint32(0), store.available(perf))
}

func TestRefundRequiresPaidOrder(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	orderID := store.addOrder(7, inst, OrderPending, 2500)

	_, err := engine.RefundOrder(context.Background(), orderID, 7, "")
	var invalid *InvalidStateError
	assert.ErrorAs(t, err, &invalid)

	_, err = engine.RefundOrder(context.Background(), orderID, 9, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
