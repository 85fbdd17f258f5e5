package ticketing

import (
	"context"
	"time"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/queue"
)

// PerformanceInfo is a performance joined with the show and
// institution context the engine needs for pricing, ownership and
// window math.
type PerformanceInfo struct {
	model.Performance
	ShowTitle     string
	DurationMin   uint32
	InstitutionID uint64
	Timezone      string
	Capacity      uint32
}

// TicketDetail is a ticket joined with its order, performance and
// institution context.  Validation, listing and the sweep all operate
// on this shape so every path has what it needs for scope checks,
// window math and event payloads.
type TicketDetail struct {
	model.Ticket
	OrderID          uint64
	OrderStatus      string
	UserID           uint64
	PerformanceID    uint64
	PerformanceStart time.Time
	ShowTitle        string
	InstitutionID    uint64
	Timezone         string
}

// Store is the persistence contract of the engine.  Status updates are
// compare-and-set: they apply only when the row is still in the
// expected state and report whether they did, which is what serializes
// a concurrent scan against the sweep, and two capture attempts
// against the same last seat.
//
// Atomically runs fn inside one database transaction; the Store passed
// to fn issues its statements on that transaction.  An error from fn
// rolls everything back.
type Store interface {
	Atomically(ctx context.Context, fn func(Store) error) error

	Institution(ctx context.Context, id uint64) (*model.Institution, error)
	PerformanceDetail(ctx context.Context, id uint64) (*PerformanceInfo, error)
	PerformanceSlots(ctx context.Context, institutionID uint64) ([]PerformanceSlot, error)

	// ReserveSeats conditionally decrements available_seats and fails
	// with *InsufficientSeatsError when fewer than qty remain.
	ReserveSeats(ctx context.Context, performanceID uint64, qty uint32) error
	// ReleaseSeats increments available_seats, capped at the venue
	// capacity.
	ReleaseSeats(ctx context.Context, performanceID uint64, qty uint32) error

	CreateOrder(ctx context.Context, o *model.Order, items []model.OrderItem) error
	Order(ctx context.Context, id uint64) (*model.Order, error)
	OrderItems(ctx context.Context, orderID uint64) ([]model.OrderItem, error)
	SetOrderStatus(ctx context.Context, id uint64, from, to string) (bool, error)

	CreatePayment(ctx context.Context, p *model.Payment) error
	PaymentByIntent(ctx context.Context, intentID string) (*model.Payment, error)
	// OpenPayment returns the most recent INITIATED or FAILED payment
	// for the order, or ErrNotFound when none exists.
	OpenPayment(ctx context.Context, orderID uint64) (*model.Payment, error)
	// SucceededPayment returns the order's captured payment, or
	// ErrNotFound when the order was never captured.
	SucceededPayment(ctx context.Context, orderID uint64) (*model.Payment, error)
	SetPaymentStatus(ctx context.Context, id uint64, from, to string) (bool, error)

	InsertTickets(ctx context.Context, tickets []model.Ticket) error
	TicketByCode(ctx context.Context, code string) (*TicketDetail, error)
	TicketsByOrder(ctx context.Context, orderID uint64) ([]model.Ticket, error)
	TicketsByUser(ctx context.Context, userID uint64) ([]TicketDetail, error)
	SetTicketStatus(ctx context.Context, id uint64, from, to string, scannedAt *time.Time) (bool, error)
	// ExpiryCandidates returns every NOT_SCANNED ticket with its
	// context; the sweep applies the authoritative venue-local window
	// check in Go because each institution has its own timezone.
	ExpiryCandidates(ctx context.Context) ([]TicketDetail, error)
}

// PaymentIntent is the gateway-side handle for one charge attempt.
// ClientSecret is returned to the browser so it can confirm the
// payment directly with the provider.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// Gateway wraps the external payment-intent API.  Every call is
// expected to carry a bounded timeout; a hung provider surfaces as an
// error, never as a stuck request.
type Gateway interface {
	CreateIntent(ctx context.Context, orderID uint64, amountCents uint32) (PaymentIntent, error)
	// Reusable reports whether a previously created intent can still
	// be confirmed, returning its handle when it can.  Used to avoid
	// minting duplicate intents on payment retry.
	Reusable(ctx context.Context, intentID string) (PaymentIntent, bool, error)
	// Confirmed reports whether the intent has been successfully
	// confirmed on the gateway side.
	Confirmed(ctx context.Context, intentID string) (bool, error)
	Refund(ctx context.Context, intentID string) error
}

// Publisher emits notification events to the message broker.  Publish
// failures are logged by callers but never fail the business
// operation that triggered them.
type Publisher interface {
	TicketScanned(ctx context.Context, ev queue.TicketScannedEvent) error
	TicketExpired(ctx context.Context, ev queue.TicketExpiredEvent) error
	OrderRefunded(ctx context.Context, ev queue.OrderRefundedEvent) error
}
