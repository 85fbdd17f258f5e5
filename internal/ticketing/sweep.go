package ticketing

import (
	"context"
	"log"
	"time"

	"github.com/applauz/theatre-ticketing/internal/queue"
)

// Sweeper is the system-of-record expiration loop: it guarantees
// unscanned tickets expire even if nobody ever presents them at the
// door.  Flips are compare-and-set and one-directional, so running
// more than one replica, or racing a door scan, cannot double-apply.
type Sweeper struct {
	store    Store
	events   Publisher
	interval time.Duration
}

// NewSweeper constructs a sweeper.  A non-positive interval falls back
// to five minutes.
func NewSweeper(store Store, events Publisher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{store: store, events: events, interval: interval}
}

// Run executes the sweep loop until ctx is cancelled.  Each tick is
// self-paced; a failing tick is logged and retried at the next
// interval rather than terminating the loop.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("ticket-sweep: running every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("ticket-sweep: stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			expired, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("ticket-sweep: tick failed: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("ticket-sweep: expired %d tickets", expired)
			}
		}
	}
}

// SweepOnce finds every NOT_SCANNED ticket whose performance's scan
// window has closed in its venue's local time, flips it to INVALID and
// emits one ticket.expired event per flipped ticket.  It returns the
// number of tickets expired.  The window check runs in Go because the
// comparison is per-institution timezone.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	candidates, err := s.store.ExpiryCandidates(ctx)
	if err != nil {
		return 0, err
	}
	var expired int
	for _, det := range candidates {
		now := VenueNow(det.Timezone)
		next, changed := ReconcileExpiry(det.Status, det.ScannedAt, det.PerformanceStart, now)
		if !changed || next != TicketInvalid {
			continue
		}
		ok, err := s.store.SetTicketStatus(ctx, det.Ticket.ID, TicketNotScanned, TicketInvalid, nil)
		if err != nil {
			log.Printf("ticket-sweep: expire ticket %d: %v", det.Ticket.ID, err)
			continue
		}
		if !ok {
			// A door scan or another sweep replica got there first.
			continue
		}
		expired++
		ev := queue.TicketExpiredEvent{
			TicketID:      det.Ticket.ID,
			TicketCode:    det.Code,
			OrderID:       det.OrderID,
			UserID:        det.UserID,
			InstitutionID: det.InstitutionID,
			ShowTitle:     det.ShowTitle,
			PerformanceID: det.PerformanceID,
			StartsAt:      det.PerformanceStart.Format(time.RFC3339),
			ExpiredAt:     now.Format(time.RFC3339),
		}
		if err := s.events.TicketExpired(ctx, ev); err != nil {
			logPublishErr(queue.TicketExpiredQueue, err)
		}
	}
	return expired, nil
}
