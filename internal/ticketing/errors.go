package ticketing

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all engine operations.  Handlers translate
// these into stable HTTP status codes: ErrNotFound -> 404,
// ErrUnauthorized -> 403, ErrConflict -> 409.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// InvalidStateError signals that the requested transition is not legal
// from the entity's current state, e.g. refunding an order that is not
// PAID.  Handlers translate it into HTTP 400.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return e.Msg }

// invalidState is a shorthand constructor used throughout the engine.
func invalidState(format string, args ...interface{}) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientSeatsError reports that a performance cannot cover the
// requested quantity.  Remaining carries the actual seat count so the
// boundary can render "sold out" versus "only N seats left" as
// distinct user-facing messages.  Handlers translate it into HTTP 409.
type InsufficientSeatsError struct {
	PerformanceID uint64
	Requested     uint32
	Remaining     uint32
}

func (e *InsufficientSeatsError) Error() string {
	if e.Remaining == 0 {
		return fmt.Sprintf("performance %d is sold out", e.PerformanceID)
	}
	return fmt.Sprintf("not enough seats for performance %d, only %d left", e.PerformanceID, e.Remaining)
}

// GatewayError wraps a failure or timeout from the external payment
// provider.  Handlers translate it into HTTP 502.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

// CaptureRevertedError reports that payment capture succeeded at the
// gateway but the authoritative seat re-check failed, so the local
// payment was flipped back to FAILED and the order left PENDING.  The
// captured funds must be returned through an operational refund; the
// caller must surface this loudly rather than silently clamping.
type CaptureRevertedError struct {
	OrderID uint64
	Cause   error
}

func (e *CaptureRevertedError) Error() string {
	return fmt.Sprintf("capture for order %d reverted: %v", e.OrderID, e.Cause)
}

func (e *CaptureRevertedError) Unwrap() error { return e.Cause }
