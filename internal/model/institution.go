package model

import "time"

// Institution represents a theatre or venue that publishes shows and
// validates tickets at its own door.  Capacity bounds the available
// seat counter of every performance hosted at the venue.  Timezone is
// an IANA zone name; all scheduling and scan-window math is done in
// the institution's local wall-clock time.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the institution.
//  Capacity  – total seats in the venue; ceiling for available_seats.
//  Timezone  – IANA timezone name (e.g. "Europe/Sarajevo").
//  IsActive  – whether the institution is active.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Institution struct {
	ID        uint64    // institutions.id
	Name      string    // institutions.name
	Capacity  uint32    // institutions.capacity
	Timezone  string    // institutions.timezone
	IsActive  bool      // institutions.is_active
	CreatedAt time.Time // institutions.created_at
	UpdatedAt time.Time // institutions.updated_at
}
