package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/repository"
	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// OrderHandler exposes the order lifecycle: create, cancel, refund, and
// the caller's own order history.  All state transitions go through the
// ticket engine; the handler only binds requests and shapes responses.
type OrderHandler struct {
	Engine *ticketing.Engine
	Store  *repository.Store
}

func NewOrderHandler(engine *ticketing.Engine, store *repository.Store) *OrderHandler {
	if engine == nil || store == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Engine: engine, Store: store}
}

// ----- DTOs -----

type createOrderReq struct {
	InstitutionID uint64 `json:"institution_id"`
	Items         []struct {
		PerformanceID uint64 `json:"performance_id"`
		Quantity      uint32 `json:"quantity"`
	} `json:"items"`
}

type refundReq struct {
	Reason string `json:"reason"`
}

type orderItemPart struct {
	ID             uint64 `json:"id"`
	PerformanceID  uint64 `json:"performance_id"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
}

type orderResp struct {
	ID               uint64          `json:"id"`
	InstitutionID    uint64          `json:"institution_id"`
	Status           string          `json:"status"`
	TotalAmountCents uint32          `json:"total_amount_cents"`
	CreatedAt        time.Time       `json:"created_at"`
	Items            []orderItemPart `json:"items,omitempty"`
}

func toOrderResp(o *model.Order, items []model.OrderItem) orderResp {
	resp := orderResp{
		ID:               o.ID,
		InstitutionID:    o.InstitutionID,
		Status:           o.Status,
		TotalAmountCents: o.TotalAmountCents,
		CreatedAt:        o.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemPart{
			ID:             it.ID,
			PerformanceID:  it.PerformanceID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return resp
}

// Create handles POST /v1/orders.  The order is persisted as PENDING with
// frozen prices; seats are only advisory-checked here, the authoritative
// decrement happens at capture.
func (h *OrderHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.InstitutionID == 0 || len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "institution_id and items required"})
	}
	items := make([]ticketing.OrderItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ticketing.OrderItemRequest{
			PerformanceID: it.PerformanceID,
			Quantity:      it.Quantity,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	order, orderItems, err := h.Engine.CreateOrder(ctx, uid, req.InstitutionID, items)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResp(order, orderItems))
}

// Cancel handles POST /v1/orders/:id/cancel.  Only the owner, only from
// PENDING; paid orders must go through the refund path.
func (h *OrderHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	order, err := h.Engine.CancelOrder(ctx, id, uid)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order, nil))
}

// Refund handles POST /v1/orders/:id/refund.  Only the owner, only from
// PAID, blocked entirely if any ticket was already scanned.
func (h *OrderHandler) Refund(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var req refundReq
	_ = c.Bind(&req) // reason is optional

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	order, err := h.Engine.RefundOrder(ctx, id, uid, strings.TrimSpace(req.Reason))
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order, nil))
}

// MyOrders handles GET /v1/my-orders, newest first.
func (h *OrderHandler) MyOrders(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orders, err := h.Store.OrdersByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]orderResp, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResp(&orders[i], nil))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}
