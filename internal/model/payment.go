package model

import "time"

// Payment is one attempted charge against an order.  An order may
// accumulate several attempts after failures, but at most one
// Succeeded payment drives the order to Paid.
// StripePaymentIntentID is the join key between local state and the
// gateway; the webhook reconciler resolves events through it.
//
// Fields:
//  ID                    – primary key identifier.
//  OrderID               – order being charged.
//  Status                – payment state (Initiated, Succeeded,
//                          Failed, Refunded).
//  AmountCents           – charge amount in cents.
//  StripePaymentIntentID – gateway payment-intent identifier.
//  CreatedAt             – creation timestamp.
//  UpdatedAt             – last update timestamp.
type Payment struct {
	ID                    uint64    // payments.id
	OrderID               uint64    // payments.order_id
	Status                string    // payments.status
	AmountCents           uint32    // payments.amount_cents
	StripePaymentIntentID string    // payments.stripe_payment_intent_id
	CreatedAt             time.Time // payments.created_at
	UpdatedAt             time.Time // payments.updated_at
}
