package ticketing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPaymentSucceededCapturesOnce(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 10)
	orderID, _, _ := pendingOrderWithIntent(store, 7, perf, 2, 2500, "pi_1")

	require.NoError(t, engine.ApplyPaymentSucceeded(context.Background(), orderID, "pi_1"))
	assert.Equal(t, OrderPaid, store.orderStatus(orderID))
	assert.Equal(t, uint32(8), store.available(perf))

	// Redelivery: no double decrement, no extra tickets.
	require.NoError(t, engine.ApplyPaymentSucceeded(context.Background(), orderID, "pi_1"))
	assert.Equal(t, uint32(8), store.available(perf))
	tickets, _ := store.TicketsByOrder(context.Background(), orderID)
	assert.Len(t, tickets, 2)
}

func TestApplyPaymentSucceededCreatesMissingPaymentRow(t *testing.T) {
	// The create-intent response was lost, so no local payment row
	// exists; the webhook still has to capture.
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 10)
	orderID := store.addOrder(7, inst, OrderPending, 2500)
	store.addOrderItem(orderID, perf, 1, 2500)

	require.NoError(t, engine.ApplyPaymentSucceeded(context.Background(), orderID, "pi_orphan"))
	assert.Equal(t, OrderPaid, store.orderStatus(orderID))

	pay, err := store.PaymentByIntent(context.Background(), "pi_orphan")
	require.NoError(t, err)
	assert.Equal(t, PaymentSucceeded, pay.Status)
	assert.Equal(t, orderID, pay.OrderID)
}

func TestApplyPaymentFailed(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	orderID := store.addOrder(7, inst, OrderPending, 2500)
	payID := store.addPayment(orderID, PaymentInitiated, "pi_1", 2500)

	require.NoError(t, engine.ApplyPaymentFailed(context.Background(), "pi_1"))
	assert.Equal(t, PaymentFailed, store.paymentStatus(payID))

	// Redelivery and unknown intents are both quiet no-ops.
	require.NoError(t, engine.ApplyPaymentFailed(context.Background(), "pi_1"))
	require.NoError(t, engine.ApplyPaymentFailed(context.Background(), "pi_unknown"))
	assert.Equal(t, PaymentFailed, store.paymentStatus(payID))
}

func TestApplyChargeRefundedReleasesSeatsOnce(t *testing.T) {
	engine, store, _, events := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 2)
	perf := store.addPerformance(inst, "Hamlet", futureStart(), 150, 2500, 0)
	orderID := store.addOrder(7, inst, OrderPaid, 5000)
	itemID := store.addOrderItem(orderID, perf, 2, 2500)
	t1 := store.addTicket(itemID, "code-1", TicketNotScanned, nil)
	t2 := store.addTicket(itemID, "code-2", TicketNotScanned, nil)
	payID := store.addPayment(orderID, PaymentSucceeded, "pi_1", 5000)

	require.NoError(t, engine.ApplyChargeRefunded(context.Background(), "pi_1"))
	assert.Equal(t, OrderRefunded, store.orderStatus(orderID))
	assert.Equal(t, PaymentRefunded, store.paymentStatus(payID))
	assert.Equal(t, TicketRefunded, store.ticketStatus(t1))
	assert.Equal(t, TicketRefunded, store.ticketStatus(t2))
	assert.Equal(t, uint32(2), store.available(perf))
	assert.Len(t, events.refunded, 1)

	// Replay: seats are incremented exactly once.
	require.NoError(t, engine.ApplyChargeRefunded(context.Background(), "pi_1"))
	assert.Equal(t, uint32(2), store.available(perf))
	assert.Len(t, events.refunded, 1)
}

func TestApplyChargeRefundedBeforeCapture(t *testing.T) {
	// A refund for an order that never completed capture: only the
	// payment flips, the order stays where it was.
	engine, store, _, events := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	orderID := store.addOrder(7, inst, OrderPending, 2500)
	payID := store.addPayment(orderID, PaymentSucceeded, "pi_1", 2500)

	require.NoError(t, engine.ApplyChargeRefunded(context.Background(), "pi_1"))
	assert.Equal(t, OrderPending, store.orderStatus(orderID))
	assert.Equal(t, PaymentRefunded, store.paymentStatus(payID))
	assert.Empty(t, events.refunded)
}

func TestApplyChargeRefundedUnknownIntent(t *testing.T) {
	engine, _, _, _ := newTestEngine()
	err := engine.ApplyChargeRefunded(context.Background(), "pi_unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}
