package ticketing

import "time"

// PerformanceSlot is the minimal scheduling view of an existing
// performance at a venue: when it starts and how long the stage is
// occupied (show running time, before turnaround padding).
type PerformanceSlot struct {
	PerformanceID uint64
	StartsAt      time.Time
	DurationMin   uint32
}

// SlotConflicts reports whether a candidate performance
// [start, start+duration+turnaround) overlaps any existing slot's
// equally padded interval.  The performance identified by excludeID is
// skipped so an edit does not collide with itself.  Overlap test:
// candidateStart < existingEnd && existingStart < candidateEnd.
func SlotConflicts(start time.Time, durationMin uint32, existing []PerformanceSlot, excludeID uint64) bool {
	candEnd := start.Add(time.Duration(durationMin)*time.Minute + Turnaround)
	for _, s := range existing {
		if s.PerformanceID == excludeID {
			continue
		}
		existEnd := s.StartsAt.Add(time.Duration(s.DurationMin)*time.Minute + Turnaround)
		if start.Before(existEnd) && s.StartsAt.Before(candEnd) {
			return true
		}
	}
	return false
}
