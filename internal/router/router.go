package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/applauz/theatre-ticketing/internal/handler"    // import the handlers that implement business logic
	"github.com/applauz/theatre-ticketing/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the public performance
// browse view.
func RegisterRoutes(e *echo.Echo, p *handler.PerformanceHandler) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)
	// Guests can browse upcoming performances without a session.
	e.GET("/v1/performances", p.List)
}

// RegisterAuth registers all authentication‑related routes.
// Unauthenticated operations live under /v1/auth, while the protected
// identity endpoint lives under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token and returns a new pair.
	g.POST("/refresh", a.Refresh)
	// Logout works without the JWT middleware: a refresh token in the
	// body ends one session, a bearer with no body ends all sessions.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterTicketing wires the purchase, payment and validation surface.
// Everything here requires a valid access token; role middleware narrows
// the staff-only endpoints.  The gateway webhook stays outside the JWT
// group; it authenticates by signature, not by session.
func RegisterTicketing(e *echo.Echo, jwtSecret string, o *handler.OrderHandler, pay *handler.PaymentHandler, t *handler.TicketHandler, p *handler.PerformanceHandler) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	// Order lifecycle: any authenticated user acts on their own orders;
	// ownership is enforced inside the engine, not by role.
	auth.POST("/orders", o.Create)
	auth.POST("/orders/:id/cancel", o.Cancel)
	auth.POST("/orders/:id/refund", o.Refund)
	auth.GET("/my-orders", o.MyOrders)
	auth.GET("/my-tickets", t.MyTickets)

	// Payment flow against the caller's own pending order.
	auth.POST("/payments/create-intent", pay.CreateIntent)
	auth.POST("/payments/confirm", pay.Confirm)

	// Door validation: staff scan within their own venue, admins are
	// unscoped.
	scan := auth.Group("", middleware.RequireRole("STAFF", "ADMIN"))
	scan.POST("/tickets/validate", t.Validate)

	// Scheduling is a venue-management concern.
	manage := auth.Group("", middleware.RequireRole("STAFF", "ADMIN"))
	manage.POST("/performances", p.Create)
	manage.PUT("/performances/:id", p.Reschedule)

	// Signature-verified gateway callbacks.
	e.POST("/v1/payments/webhook", pay.Webhook)
}
