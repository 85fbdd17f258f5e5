package model

import "time"

// Show represents a production staged by an institution.  A show by
// itself is not purchasable; it is scheduled as one or more
// performances, each with its own start time, price and seat counter.
//
// Fields:
//  ID            – primary key identifier.
//  InstitutionID – institution that stages the show.
//  Title         – title of the production.
//  DurationMin   – running time in minutes, used for schedule
//                  conflict checks together with the turnaround buffer.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Show struct {
	ID            uint64    // shows.id
	InstitutionID uint64    // shows.institution_id
	Title         string    // shows.title
	DurationMin   uint32    // shows.duration_min
	CreatedAt     time.Time // shows.created_at
	UpdatedAt     time.Time // shows.updated_at
}
