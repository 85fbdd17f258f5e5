package model

import "time"

// Ticket is one admission unit minted when its order is captured.
// Code is an opaque, globally-unique QR payload derived from a
// cryptographic hash; it is never reused.  Status moves
// NotScanned -> Scanned | Invalid | Refunded.  Scanned and Refunded
// are terminal; Invalid may revert to NotScanned only when the scan
// window re-opens after a reschedule and the ticket was never scanned.
//
// Fields:
//  ID          – primary key identifier.
//  OrderItemID – owning order item.
//  Code        – unique QR payload (64 hex chars).
//  Status      – ticket state (NotScanned, Scanned, Invalid, Refunded).
//  ScannedAt   – venue-local scan time (nil until scanned).
//  CreatedAt   – issuance timestamp.
//  UpdatedAt   – last update timestamp.
type Ticket struct {
	ID          uint64     // tickets.id
	OrderItemID uint64     // tickets.order_item_id
	Code        string     // tickets.code (unique)
	Status      string     // tickets.status
	ScannedAt   *time.Time // tickets.scanned_at (nullable, venue-local)
	CreatedAt   time.Time  // tickets.created_at
	UpdatedAt   time.Time  // tickets.updated_at
}
