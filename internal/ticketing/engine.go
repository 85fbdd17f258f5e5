package ticketing

import (
	"context"
	"log"
	"time"
)

// Engine glues the store, the payment gateway and the event publisher
// into the ticket lifecycle operations.  It owns every state
// transition described by the order, payment and ticket machines;
// handlers never mutate those rows directly.
type Engine struct {
	store   Store
	gateway Gateway
	events  Publisher
}

// New constructs an Engine.  All dependencies must be non-nil.
func New(store Store, gateway Gateway, events Publisher) *Engine {
	if store == nil || gateway == nil || events == nil {
		panic("nil dependency passed to ticketing.New")
	}
	return &Engine{store: store, gateway: gateway, events: events}
}

// ScheduleConflict reports whether a performance of the given duration
// starting at start would overlap another performance at the same
// institution, both intervals padded with the turnaround buffer.
// excludeID skips the performance being edited (0 for a new one).
// This is a scheduling invariant enforced at creation and update, not
// at purchase time.
func (e *Engine) ScheduleConflict(ctx context.Context, institutionID uint64, start time.Time, durationMin uint32, excludeID uint64) (bool, error) {
	slots, err := e.store.PerformanceSlots(ctx, institutionID)
	if err != nil {
		return false, err
	}
	return SlotConflicts(start, durationMin, slots, excludeID), nil
}

// UserTickets lists the user's tickets with expiry lazily reconciled:
// any non-terminal ticket whose status no longer matches the current
// venue-local time is flipped (and persisted) before the list is
// returned.  This is what lets an INVALID ticket surface as
// NOT_SCANNED again after its performance was rescheduled later.
func (e *Engine) UserTickets(ctx context.Context, userID uint64) ([]TicketDetail, error) {
	tickets, err := e.store.TicketsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		e.reconcileTicket(ctx, &tickets[i])
	}
	return tickets, nil
}

// logPublishErr records a failed event publish.  Notifications are
// best-effort; the triggering operation has already committed.
func logPublishErr(queue string, err error) {
	log.Printf("ticketing: publish %s event failed: %v", queue, err)
}

// reconcileTicket applies ReconcileExpiry to one ticket detail and
// persists the flip with a compare-and-set.  A lost race simply means
// another path already reconciled or scanned the ticket; the fresher
// state wins and the local copy is left as the CAS expected it.
func (e *Engine) reconcileTicket(ctx context.Context, t *TicketDetail) {
	now := VenueNow(t.Timezone)
	next, changed := ReconcileExpiry(t.Status, t.ScannedAt, t.PerformanceStart, now)
	if !changed {
		return
	}
	ok, err := e.store.SetTicketStatus(ctx, t.Ticket.ID, t.Status, next, nil)
	if err != nil {
		log.Printf("ticketing: reconcile ticket %d: %v", t.Ticket.ID, err)
		return
	}
	if ok {
		t.Status = next
	}
}
