package ticketing

import (
	"context"
	"errors"
	"time"

	"github.com/applauz/theatre-ticketing/internal/queue"
)

// Validation messages.  Door operators rely on the distinction between
// these to guide the patron, so each check short-circuits with its own
// message and the order of checks is deliberate: existence, terminal
// status, payment, institution scope, time window, success.
const (
	MsgInvalidTicket    = "invalid ticket"
	MsgAlreadyScanned   = "ticket already scanned"
	MsgRefunded         = "ticket refunded"
	MsgExpired          = "ticket expired"
	MsgOrderNotPaid     = "order not paid"
	MsgWrongInstitution = "wrong institution"
	MsgTooEarly         = "too early, scanning opens 2 hours before the performance"
	MsgValid            = "ticket valid"
)

// ValidationResult is the outcome of one scan attempt.  Ticket is nil
// only when the code matched nothing (no snapshot to show).
type ValidationResult struct {
	Valid   bool
	Message string
	Ticket  *TicketDetail
}

// ValidateTicket runs the per-scan state machine for a QR code.
// institutionScope restricts validation to the given venue: staff pass
// their institution id and can only admit their own venue's tickets,
// an unscoped operator passes nil and can validate anything.
//
// Side effects: a ticket past its scan window is lazily expired right
// here (flipped to INVALID), and a successful scan flips the ticket to
// SCANNED with a venue-local timestamp and emits a ticket.scanned
// event.  Both flips are compare-and-set so a concurrent sweep or
// duplicate scan cannot double-apply.
func (e *Engine) ValidateTicket(ctx context.Context, code string, institutionScope *uint64) (ValidationResult, error) {
	det, err := e.store.TicketByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ValidationResult{Valid: false, Message: MsgInvalidTicket}, nil
		}
		return ValidationResult{}, err
	}
	now := VenueNow(det.Timezone)

	switch det.Status {
	case TicketScanned:
		return invalid(det, MsgAlreadyScanned), nil
	case TicketRefunded:
		return invalid(det, MsgRefunded), nil
	case TicketInvalid:
		// The window may have re-opened if the performance was
		// rescheduled later; only a never-scanned INVALID ticket may
		// revert.  REFUNDED and SCANNED are handled above and never
		// reach this reconciliation.
		next, changed := ReconcileExpiry(det.Status, det.ScannedAt, det.PerformanceStart, now)
		if !changed || next != TicketNotScanned {
			return invalid(det, MsgExpired), nil
		}
		ok, err := e.store.SetTicketStatus(ctx, det.Ticket.ID, TicketInvalid, TicketNotScanned, nil)
		if err != nil {
			return ValidationResult{}, err
		}
		if !ok {
			return invalid(det, MsgExpired), nil
		}
		det.Status = TicketNotScanned
	}

	if det.OrderStatus != OrderPaid {
		return invalid(det, MsgOrderNotPaid), nil
	}
	if institutionScope != nil && *institutionScope != det.InstitutionID {
		return invalid(det, MsgWrongInstitution), nil
	}

	opens, closes := ScanWindow(det.PerformanceStart)
	if now.Before(opens) {
		return invalid(det, MsgTooEarly), nil
	}
	if now.After(closes) {
		// Lazy expiry at the door: same rule as the sweep, applied the
		// moment the stale ticket is presented.
		ok, err := e.store.SetTicketStatus(ctx, det.Ticket.ID, TicketNotScanned, TicketInvalid, nil)
		if err != nil {
			return ValidationResult{}, err
		}
		if ok {
			det.Status = TicketInvalid
		}
		return invalid(det, MsgExpired), nil
	}

	scannedAt := now
	ok, err := e.store.SetTicketStatus(ctx, det.Ticket.ID, TicketNotScanned, TicketScanned, &scannedAt)
	if err != nil {
		return ValidationResult{}, err
	}
	if !ok {
		// Lost the race to another scanner between read and flip.
		return invalid(det, MsgAlreadyScanned), nil
	}
	det.Status = TicketScanned
	det.ScannedAt = &scannedAt

	ev := queue.TicketScannedEvent{
		TicketID:      det.Ticket.ID,
		TicketCode:    det.Code,
		OrderID:       det.OrderID,
		UserID:        det.UserID,
		InstitutionID: det.InstitutionID,
		ShowTitle:     det.ShowTitle,
		PerformanceID: det.PerformanceID,
		StartsAt:      det.PerformanceStart.Format(time.RFC3339),
		ScannedAt:     scannedAt.Format(time.RFC3339),
	}
	if err := e.events.TicketScanned(ctx, ev); err != nil {
		logPublishErr(queue.TicketScannedQueue, err)
	}
	return ValidationResult{Valid: true, Message: MsgValid, Ticket: det}, nil
}

func invalid(det *TicketDetail, msg string) ValidationResult {
	return ValidationResult{Valid: false, Message: msg, Ticket: det}
}
