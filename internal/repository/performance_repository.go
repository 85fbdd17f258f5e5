package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/applauz/theatre-ticketing/internal/model"
)

// PerformanceRepo provides the management and browse operations on
// shows and performances that live outside the lifecycle engine:
// scheduling a performance, rescheduling it, and public listings.
// The schedule-conflict decision itself belongs to the engine; this
// repo only persists.
type PerformanceRepo struct {
	db *sql.DB
}

// NewPerformanceRepo returns a PerformanceRepo bound to the database.
func NewPerformanceRepo(db *sql.DB) *PerformanceRepo { return &PerformanceRepo{db: db} }

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ErrPerformanceNotFound indicates that a performance was not located
// in the DB.
var ErrPerformanceNotFound = errors.New("performance not found")

// GetShow fetches one show row.
func (r *PerformanceRepo) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT id, institution_id, title, duration_min, created_at, updated_at
               FROM shows WHERE id = ?`
	var sh model.Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&sh.ID, &sh.InstitutionID, &sh.Title, &sh.DurationMin, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &sh, nil
}

// GetPerformance fetches one performance row.
func (r *PerformanceRepo) GetPerformance(ctx context.Context, id uint64) (*model.Performance, error) {
	const q = `SELECT id, show_id, starts_at, price_cents, available_seats, created_at, updated_at
               FROM performances WHERE id = ?`
	var p model.Performance
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.ShowID, &p.StartsAt, &p.PriceCents, &p.AvailableSeats, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPerformanceNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a performance, seeding available_seats with the
// venue's full capacity.  The unique (show_id, starts_at) constraint
// surfaces as ErrDuplicateSlot.
func (r *PerformanceRepo) Create(ctx context.Context, p *model.Performance) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO performances (show_id, starts_at, price_cents, available_seats) VALUES (?, ?, ?, ?)`,
		p.ShowID, p.StartsAt.Format("2006-01-02 15:04:05"), p.PriceCents, p.AvailableSeats)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateSlot
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// Reschedule moves a performance to a new start time and price and
// recomputes available_seats as the venue's capacity minus every
// still-sold ticket (anything not REFUNDED keeps its seat: scanned
// tickets were used, invalid ones consumed their seat when the old
// slot lapsed).  Runs in one transaction so the counter can never be
// observed mid-recompute.
func (r *PerformanceRepo) Reschedule(ctx context.Context, id uint64, startsAt time.Time, priceCents uint32) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const upd = `
        UPDATE performances p
        JOIN shows sh ON sh.id = p.show_id
        JOIN institutions i ON i.id = sh.institution_id
        SET p.starts_at = ?, p.price_cents = ?,
            p.available_seats = i.capacity - (
                SELECT COUNT(*) FROM tickets t
                JOIN order_items oi ON oi.id = t.order_item_id
                WHERE oi.performance_id = p.id AND t.status <> 'REFUNDED'
            ),
            p.updated_at = NOW()
        WHERE p.id = ?`
	res, err := tx.ExecContext(ctx, upd, startsAt.Format("2006-01-02 15:04:05"), priceCents, id)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateSlot
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows both for a missing id and
		// for a no-op update; distinguish with an existence probe.
		var exists uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM performances WHERE id = ?`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPerformanceNotFound
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// PerformanceListing is the public browse row: a performance with its
// show and institution display fields.
type PerformanceListing struct {
	ID              uint64 `json:"id"`
	ShowID          uint64 `json:"show_id"`
	ShowTitle       string `json:"show_title"`
	InstitutionID   uint64 `json:"institution_id"`
	InstitutionName string `json:"institution_name"`
	StartsAt        string `json:"starts_at"`
	PriceCents      uint32 `json:"price_cents"`
	AvailableSeats  uint32 `json:"available_seats"`
}

// ListUpcoming returns performances that have not yet started,
// soonest first.  Start times are venue-local, so the cutoff is the
// conservative UTC-minus-a-day bound; precise per-venue filtering is
// not worth a per-row timezone conversion for a browse view.
func (r *PerformanceRepo) ListUpcoming(ctx context.Context) ([]PerformanceListing, error) {
	const q = `SELECT p.id, p.show_id, sh.title, i.id, i.name, p.starts_at, p.price_cents, p.available_seats
               FROM performances p
               JOIN shows sh ON sh.id = p.show_id
               JOIN institutions i ON i.id = sh.institution_id
               WHERE p.starts_at >= DATE_SUB(UTC_TIMESTAMP(), INTERVAL 1 DAY)
               ORDER BY p.starts_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	listings := make([]PerformanceListing, 0)
	for rows.Next() {
		var l PerformanceListing
		var startsAt time.Time
		if err := rows.Scan(&l.ID, &l.ShowID, &l.ShowTitle, &l.InstitutionID, &l.InstitutionName,
			&startsAt, &l.PriceCents, &l.AvailableSeats); err != nil {
			return nil, err
		}
		l.StartsAt = startsAt.Format(time.RFC3339)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
