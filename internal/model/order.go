package model

import "time"

// Order records a purchase transaction by one user at one
// institution.  Status moves Pending -> Paid -> {Cancelled, Refunded};
// Cancelled and Refunded are terminal.  TotalAmountCents is fixed at
// creation from the frozen item prices and is never recomputed.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who placed the order.
//  InstitutionID    – institution all items belong to.
//  Status           – order state (Pending, Paid, Cancelled, Refunded).
//  TotalAmountCents – sum of item subtotals at creation time.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Order struct {
	ID               uint64    // orders.id
	UserID           uint64    // orders.user_id
	InstitutionID    uint64    // orders.institution_id
	Status           string    // orders.status
	TotalAmountCents uint32    // orders.total_amount_cents
	CreatedAt        time.Time // orders.created_at
	UpdatedAt        time.Time // orders.updated_at
}

// OrderItem binds an order to one performance with a quantity and the
// unit price captured when the order was created.  A pending item owns
// no tickets; a paid item owns exactly Quantity tickets.
//
// Fields:
//  ID             – primary key identifier.
//  OrderID        – owning order.
//  PerformanceID  – performance being purchased.
//  Quantity       – number of admissions.
//  UnitPriceCents – frozen per-seat price in cents.
//  CreatedAt      – creation timestamp.
type OrderItem struct {
	ID             uint64    // order_items.id
	OrderID        uint64    // order_items.order_id
	PerformanceID  uint64    // order_items.performance_id
	Quantity       uint32    // order_items.quantity
	UnitPriceCents uint32    // order_items.unit_price_cents
	CreatedAt      time.Time // order_items.created_at
}
