package model

import "time"

// Performance is one scheduled showing of a show at its institution's
// venue.  StartsAt is stored as venue-local wall-clock time, never
// converted to UTC.  AvailableSeats is the mutable inventory counter:
// decremented at payment capture, incremented on cancellation or
// refund, recomputed on reschedule.  The invariant
// 0 <= AvailableSeats <= institution capacity holds at every
// observable point.
//
// Fields:
//  ID             – primary key identifier.
//  ShowID         – show being performed.
//  StartsAt       – venue-local start time.
//  PriceCents     – current unit price in cents.  Order items freeze
//                   the price at order-creation time, so later edits
//                   never change an existing order's total.
//  AvailableSeats – seats still purchasable.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Performance struct {
	ID             uint64    // performances.id
	ShowID         uint64    // performances.show_id
	StartsAt       time.Time // performances.starts_at (venue-local)
	PriceCents     uint32    // performances.price_cents
	AvailableSeats uint32    // performances.available_seats
	CreatedAt      time.Time // performances.created_at
	UpdatedAt      time.Time // performances.updated_at
}
