package ticketing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpiresPastWindowTickets(t *testing.T) {
	_, store, _, events := newTestEngine()
	sweeper := NewSweeper(store, events, time.Minute)

	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	past := store.addPerformance(inst, "Hamlet", VenueNow("UTC").Add(-time.Hour), 150, 2500, 99)
	upcoming := store.addPerformance(inst, "Macbeth", VenueNow("UTC").Add(time.Hour), 120, 1800, 99)
	orderID := store.addOrder(7, inst, OrderPaid, 4300)
	pastItem := store.addOrderItem(orderID, past, 1, 2500)
	upcomingItem := store.addOrderItem(orderID, upcoming, 1, 1800)
	stale := store.addTicket(pastItem, "qr-stale", TicketNotScanned, nil)
	fresh := store.addTicket(upcomingItem, "qr-fresh", TicketNotScanned, nil)

	expired, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, TicketInvalid, store.ticketStatus(stale))
	assert.Equal(t, TicketNotScanned, store.ticketStatus(fresh))

	require.Len(t, events.expired, 1)
	ev := events.expired[0]
	assert.Equal(t, stale, ev.TicketID)
	assert.Equal(t, orderID, ev.OrderID)
	assert.Equal(t, uint64(7), ev.UserID)
	assert.Equal(t, "Hamlet", ev.ShowTitle)
}

func TestSweepIsIdempotent(t *testing.T) {
	_, store, _, events := newTestEngine()
	sweeper := NewSweeper(store, events, time.Minute)

	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	past := store.addPerformance(inst, "Hamlet", VenueNow("UTC").Add(-time.Hour), 150, 2500, 99)
	orderID := store.addOrder(7, inst, OrderPaid, 2500)
	item := store.addOrderItem(orderID, past, 1, 2500)
	store.addTicket(item, "qr-stale", TicketNotScanned, nil)

	expired, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// A second pass (or a second replica) finds nothing to do.
	expired, err = sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Len(t, events.expired, 1, "exactly one event per ticket, ever")
}

func TestSweepDoesNotTouchScannedTickets(t *testing.T) {
	_, store, _, events := newTestEngine()
	sweeper := NewSweeper(store, events, time.Minute)

	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	past := store.addPerformance(inst, "Hamlet", VenueNow("UTC").Add(-time.Hour), 150, 2500, 99)
	orderID := store.addOrder(7, inst, OrderPaid, 2500)
	item := store.addOrderItem(orderID, past, 1, 2500)
	scannedAt := VenueNow("UTC").Add(-50 * time.Minute)
	scanned := store.addTicket(item, "qr-used", TicketScanned, &scannedAt)

	expired, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, TicketScanned, store.ticketStatus(scanned))
	assert.Empty(t, events.expired)
}

func TestListingReconcilesLazily(t *testing.T) {
	engine, store, _, _ := newTestEngine()
	inst := store.addInstitution("Grand Theatre", "UTC", 100)
	past := store.addPerformance(inst, "Hamlet", VenueNow("UTC").Add(-time.Hour), 150, 2500, 99)
	rescheduled := store.addPerformance(inst, "Macbeth", VenueNow("UTC").Add(time.Hour), 120, 1800, 99)
	orderID := store.addOrder(7, inst, OrderPaid, 4300)
	pastItem := store.addOrderItem(orderID, past, 1, 2500)
	reschedItem := store.addOrderItem(orderID, rescheduled, 1, 1800)
	// One ticket the sweep has not caught yet, one invalidated under an
	// old slot whose performance now starts in the future again.
	lapsed := store.addTicket(pastItem, "qr-lapsed", TicketNotScanned, nil)
	revivable := store.addTicket(reschedItem, "qr-revivable", TicketInvalid, nil)

	tickets, err := engine.UserTickets(context.Background(), 7)
	require.NoError(t, err)
	byID := make(map[uint64]string, len(tickets))
	for _, det := range tickets {
		byID[det.Ticket.ID] = det.Status
	}
	assert.Equal(t, TicketInvalid, byID[lapsed], "listing expires lapsed tickets")
	assert.Equal(t, TicketNotScanned, byID[revivable], "listing revives rescheduled tickets")

	// The flips were persisted, not just rendered.
	assert.Equal(t, TicketInvalid, store.ticketStatus(lapsed))
	assert.Equal(t, TicketNotScanned, store.ticketStatus(revivable))
}
