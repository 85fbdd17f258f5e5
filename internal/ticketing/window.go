package ticketing

import "time"

// Scheduling and scan-window constants.  All window math is done in
// venue-local wall-clock time.
const (
	// ScanOpensBefore is how long before a performance starts that its
	// tickets become scannable.
	ScanOpensBefore = 120 * time.Minute
	// ScanClosesAfter is the grace window after the start time during
	// which late arrivals are still admitted.  Past it a ticket
	// expires.
	ScanClosesAfter = 15 * time.Minute
	// Turnaround is the fixed buffer appended to every performance's
	// running time for schedule-conflict checks, covering clear-out
	// and reset of the venue.
	Turnaround = 30 * time.Minute
)

// ScanWindow returns the inclusive interval [start-120min, start+15min]
// during which a ticket for a performance starting at start may be
// scanned.
func ScanWindow(start time.Time) (opens, closes time.Time) {
	return start.Add(-ScanOpensBefore), start.Add(ScanClosesAfter)
}

// VenueNow returns the current wall-clock time in the given IANA zone,
// normalized to the same location-less representation the database
// times are read in, so it compares directly against stored
// venue-local DATETIME values.  An unknown zone falls back to UTC.
func VenueNow(tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	n := time.Now().In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), n.Second(), 0, time.UTC)
}

// ReconcileExpiry recomputes a ticket's status against the current
// venue-local time and its performance's start.  It is the single
// source of expiry truth, called from validation, listing and the
// background sweep so the three paths cannot drift.
//
// Rules:
//   - SCANNED and REFUNDED never change.
//   - NOT_SCANNED past the close of the scan window becomes INVALID.
//   - INVALID reverts to NOT_SCANNED only when the ticket was never
//     scanned and the window is open again (the performance was
//     rescheduled to a later time).
//
// It returns the resulting status and whether it differs from the
// input.  Persisting the change is the caller's job.
func ReconcileExpiry(status string, scannedAt *time.Time, start, now time.Time) (string, bool) {
	if TicketTerminal(status) {
		return status, false
	}
	_, closes := ScanWindow(start)
	switch status {
	case TicketNotScanned:
		if now.After(closes) {
			return TicketInvalid, true
		}
	case TicketInvalid:
		if scannedAt == nil && !now.After(closes) {
			return TicketNotScanned, true
		}
	}
	return status, false
}
