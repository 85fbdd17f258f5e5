package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// TicketHandler exposes door validation and the caller's own tickets.
type TicketHandler struct {
	Engine *ticketing.Engine
}

func NewTicketHandler(engine *ticketing.Engine) *TicketHandler {
	if engine == nil {
		panic("nil engine passed to NewTicketHandler")
	}
	return &TicketHandler{Engine: engine}
}

type validateReq struct {
	QRCode string `json:"qr_code"`
}

type ticketPart struct {
	ID               uint64     `json:"id"`
	Code             string     `json:"code"`
	Status           string     `json:"status"`
	ScannedAt        *time.Time `json:"scanned_at,omitempty"`
	OrderID          uint64     `json:"order_id"`
	ShowTitle        string     `json:"show_title"`
	PerformanceID    uint64     `json:"performance_id"`
	PerformanceStart time.Time  `json:"performance_start"`
}

func toTicketPart(det *ticketing.TicketDetail) *ticketPart {
	if det == nil {
		return nil
	}
	return &ticketPart{
		ID:               det.Ticket.ID,
		Code:             det.Code,
		Status:           det.Status,
		ScannedAt:        det.ScannedAt,
		OrderID:          det.OrderID,
		ShowTitle:        det.ShowTitle,
		PerformanceID:    det.PerformanceID,
		PerformanceStart: det.PerformanceStart,
	}
}

// Validate handles POST /v1/tickets/validate.  STAFF callers are scoped
// to their own venue through the institution_id claim; ADMIN callers are
// unscoped and can admit any venue's tickets.  The response always
// carries is_valid plus the operator-facing message; a ticket snapshot
// is attached whenever the code matched something.
func (h *TicketHandler) Validate(c echo.Context) error {
	var req validateReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.QRCode) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "qr_code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Engine.ValidateTicket(ctx, strings.TrimSpace(req.QRCode), institutionScope(c))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"is_valid": res.Valid,
		"message":  res.Message,
		"ticket":   toTicketPart(res.Ticket),
	})
}

// MyTickets handles GET /v1/my-tickets.  Listing reconciles each
// non-terminal ticket's status against the clock before returning, so a
// ticket whose window has passed already reads INVALID here even if the
// sweep has not caught it yet.
func (h *TicketHandler) MyTickets(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	details, err := h.Engine.UserTickets(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]*ticketPart, 0, len(details))
	for i := range details {
		out = append(out, toTicketPart(&details[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}
