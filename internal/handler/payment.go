package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v79"

	"github.com/applauz/theatre-ticketing/internal/payment"
	"github.com/applauz/theatre-ticketing/internal/service"
	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// PaymentHandler owns the payment surface: intent creation, the
// synchronous confirm path, and the asynchronous gateway webhook.  Both
// paths funnel into the same engine capture, so whichever arrives first
// wins and the other becomes a no-op.
type PaymentHandler struct {
	Engine  *ticketing.Engine
	Gateway *payment.StripeGateway
	Deduper *service.EventDeduper
}

func NewPaymentHandler(engine *ticketing.Engine, gateway *payment.StripeGateway, deduper *service.EventDeduper) *PaymentHandler {
	if engine == nil || gateway == nil || deduper == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Engine: engine, Gateway: gateway, Deduper: deduper}
}

type createIntentReq struct {
	OrderID uint64 `json:"order_id"`
}

type confirmReq struct {
	OrderID         uint64 `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// CreateIntent handles POST /v1/payments/create-intent.  Retries against
// the same order reuse the existing still-confirmable intent instead of
// minting a new one.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createIntentReq
	if err := c.Bind(&req); err != nil || req.OrderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	intent, err := h.Engine.CreateIntent(ctx, req.OrderID, uid)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"client_secret":     intent.ClientSecret,
		"payment_intent_id": intent.ID,
		"publishable_key":   h.Gateway.PublishableKey(),
	})
}

// Confirm handles POST /v1/payments/confirm.  Verifies the intent
// succeeded on the gateway, then captures: decrement seats, mint tickets,
// flip the order to PAID, all in one transaction.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req confirmReq
	if err := c.Bind(&req); err != nil || req.OrderID == 0 || req.PaymentIntentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id and payment_intent_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	order, err := h.Engine.ConfirmPayment(ctx, req.OrderID, req.PaymentIntentID, uid)
	if err != nil {
		return writeEngineError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order, nil))
}

// Webhook handles POST /v1/payments/webhook.  Signature failures get a
// 400 so the sender knows the endpoint is misconfigured; every
// successfully parsed event gets a 200 even when the embedded business
// event is a no-op, which is what stops upstream retries.  A handling
// failure releases the dedupe claim and returns 500 so the gateway
// redelivers.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<16))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read body failed"})
	}
	event, err := h.Gateway.ParseEvent(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	if !h.Deduper.FirstDelivery(ctx, event.ID) {
		return c.JSON(http.StatusOK, echo.Map{"received": true, "duplicate": true})
	}

	if err := h.applyEvent(ctx, event); err != nil {
		h.Deduper.Forget(ctx, event.ID)
		c.Logger().Errorf("webhook: apply %s (%s) failed: %v", event.Type, event.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event handling failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

func (h *PaymentHandler) applyEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return err
		}
		orderID, err := strconv.ParseUint(pi.Metadata["order_id"], 10, 64)
		if err != nil {
			// No order reference means the intent is not ours; ack it.
			return nil
		}
		return h.Engine.ApplyPaymentSucceeded(ctx, orderID, pi.ID)
	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return err
		}
		return h.Engine.ApplyPaymentFailed(ctx, pi.ID)
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return err
		}
		if ch.PaymentIntent == nil {
			return nil
		}
		return h.Engine.ApplyChargeRefunded(ctx, ch.PaymentIntent.ID)
	}
	// Unrecognized event types are acknowledged, not errors.
	return nil
}
