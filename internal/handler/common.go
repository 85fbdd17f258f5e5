package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel values used in getUserID
	"net/http"
	"strconv" // strconv converts strings to numeric types

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// institutionScope returns the venue scope the caller may act inside, or
// nil when the caller is unscoped.  STAFF tokens carry institution_id,
// which narrows validation to their own venue; ADMIN tokens carry none and
// operate globally.
func institutionScope(c echo.Context) *uint64 {
	v := c.Get("institution_id")
	switch t := v.(type) {
	case uint64:
		return &t
	case float64:
		id := uint64(t)
		return &id
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

// pathID parses a numeric :id path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// writeEngineError maps a ticket-engine error onto a stable HTTP status
// and a human-readable message.  Every engine code path returns one of
// these classified errors, so handlers never leak raw database faults.
func writeEngineError(c echo.Context, err error) error {
	var (
		invalid      *ticketing.InvalidStateError
		insufficient *ticketing.InsufficientSeatsError
		gateway      *ticketing.GatewayError
		reverted     *ticketing.CaptureRevertedError
	)
	switch {
	case errors.Is(err, ticketing.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, ticketing.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, ticketing.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.As(err, &reverted):
		// Payment went through but seats ran out at capture; the charge
		// is flagged for operational refund.
		return c.JSON(http.StatusConflict, echo.Map{"error": reverted.Error()})
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusConflict, echo.Map{"error": insufficient.Error()})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Msg})
	case errors.As(err, &gateway):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
