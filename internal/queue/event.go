// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names for the durable notification queues.  Publisher and
// consumer must agree on these.
const (
	TicketScannedQueue = "ticket.scanned"
	TicketExpiredQueue = "ticket.expired"
	OrderRefundedQueue = "order.refunded"
)

// TicketScannedEvent is published when a ticket is successfully
// validated at the door.  It carries enough context for downstream
// consumers to log or notify without querying the primary database.
type TicketScannedEvent struct {
	TicketID      uint64 `json:"ticket_id"`
	TicketCode    string `json:"ticket_code"`
	OrderID       uint64 `json:"order_id"`
	UserID        uint64 `json:"user_id"`
	InstitutionID uint64 `json:"institution_id"`
	ShowTitle     string `json:"show_title"`
	PerformanceID uint64 `json:"performance_id"`
	StartsAt      string `json:"starts_at"`
	ScannedAt     string `json:"scanned_at"`
}

// TicketExpiredEvent is published once per ticket the expiration sweep
// invalidates.  One event per ticket, never re-emitted for the same
// ticket because the status flip is one-directional.
type TicketExpiredEvent struct {
	TicketID      uint64 `json:"ticket_id"`
	TicketCode    string `json:"ticket_code"`
	OrderID       uint64 `json:"order_id"`
	UserID        uint64 `json:"user_id"`
	InstitutionID uint64 `json:"institution_id"`
	ShowTitle     string `json:"show_title"`
	PerformanceID uint64 `json:"performance_id"`
	StartsAt      string `json:"starts_at"`
	ExpiredAt     string `json:"expired_at"`
}

// OrderRefundedEvent is published after a refund completes, whether it
// was requested synchronously or applied by the webhook reconciler.
type OrderRefundedEvent struct {
	OrderID          uint64 `json:"order_id"`
	UserID           uint64 `json:"user_id"`
	InstitutionID    uint64 `json:"institution_id"`
	TotalAmountCents uint32 `json:"total_amount_cents"`
	Reason           string `json:"reason,omitempty"`
	RefundedTickets  int    `json:"refunded_tickets"`
	RefundedAt       string `json:"refunded_at"`
}
