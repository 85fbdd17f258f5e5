// Package ticketing implements the ticket lifecycle and seat-inventory
// engine: order state machine, payment capture, ticket issuance and
// validation, lazy expiry reconciliation, the background expiration
// sweep and the webhook reconciler.  The package is free of HTTP
// concerns; handlers call into Engine and map its errors to status
// codes.
package ticketing

// Order statuses.  PENDING -> PAID -> {CANCELLED, REFUNDED}.
// CANCELLED and REFUNDED are terminal.
const (
	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderCancelled = "CANCELLED"
	OrderRefunded  = "REFUNDED"
)

// Ticket statuses.  NOT_SCANNED -> {SCANNED, INVALID, REFUNDED}.
// SCANNED and REFUNDED are terminal.  INVALID may revert to
// NOT_SCANNED only when the scan window re-opens after a reschedule
// and the ticket was never actually scanned (see ReconcileExpiry).
const (
	TicketNotScanned = "NOT_SCANNED"
	TicketScanned    = "SCANNED"
	TicketInvalid    = "INVALID"
	TicketRefunded   = "REFUNDED"
)

// Payment statuses.  INITIATED -> {SUCCEEDED, FAILED},
// SUCCEEDED -> REFUNDED.  An order may accumulate several failed
// attempts; at most one SUCCEEDED payment drives it to PAID.
const (
	PaymentInitiated = "INITIATED"
	PaymentSucceeded = "SUCCEEDED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// OrderTerminal reports whether an order status permits no further
// transitions.
func OrderTerminal(status string) bool {
	return status == OrderCancelled || status == OrderRefunded
}

// TicketTerminal reports whether a ticket status permits no further
// transitions.  INVALID is deliberately excluded: it is the one
// non-final failure state, reversible via ReconcileExpiry.
func TicketTerminal(status string) bool {
	return status == TicketScanned || status == TicketRefunded
}
