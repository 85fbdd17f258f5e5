package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// ticketDetailColumns is the join every ticket read path shares: the
// ticket with its order, performance, show and institution context.
const ticketDetailColumns = `
    SELECT t.id, t.order_item_id, t.code, t.status, t.scanned_at, t.created_at, t.updated_at,
           o.id, o.status, o.user_id,
           p.id, p.starts_at,
           sh.title,
           i.id, i.timezone
    FROM tickets t
    JOIN order_items oi ON oi.id = t.order_item_id
    JOIN orders o ON o.id = oi.order_id
    JOIN performances p ON p.id = oi.performance_id
    JOIN shows sh ON sh.id = p.show_id
    JOIN institutions i ON i.id = sh.institution_id`

func scanTicketDetail(rows interface {
	Scan(dest ...interface{}) error
}) (*ticketing.TicketDetail, error) {
	var det ticketing.TicketDetail
	var scannedAt sql.NullTime
	err := rows.Scan(
		&det.Ticket.ID, &det.OrderItemID, &det.Code, &det.Status, &scannedAt,
		&det.Ticket.CreatedAt, &det.Ticket.UpdatedAt,
		&det.OrderID, &det.OrderStatus, &det.UserID,
		&det.PerformanceID, &det.PerformanceStart,
		&det.ShowTitle,
		&det.InstitutionID, &det.Timezone,
	)
	if err != nil {
		return nil, err
	}
	if scannedAt.Valid {
		t := scannedAt.Time
		det.ScannedAt = &t
	}
	return &det, nil
}

// InsertTickets bulk-inserts freshly minted tickets in one statement.
// The unique constraint on tickets.code backstops code generation;
// a violation fails the whole capture transaction.
func (s *Store) InsertTickets(ctx context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (order_item_id, code, status) VALUES `
	args := make([]interface{}, 0, len(tickets)*3)
	for i, t := range tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, t.OrderItemID, t.Code, t.Status)
	}
	_, err := s.q.ExecContext(ctx, query, args...)
	return err
}

// TicketByCode resolves a scanned QR payload to its full detail.
func (s *Store) TicketByCode(ctx context.Context, code string) (*ticketing.TicketDetail, error) {
	det, err := scanTicketDetail(s.q.QueryRowContext(ctx, ticketDetailColumns+` WHERE t.code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticketing.ErrNotFound
		}
		return nil, err
	}
	return det, nil
}

// TicketsByOrder lists the bare ticket rows of an order.
func (s *Store) TicketsByOrder(ctx context.Context, orderID uint64) ([]model.Ticket, error) {
	const q = `SELECT t.id, t.order_item_id, t.code, t.status, t.scanned_at, t.created_at, t.updated_at
               FROM tickets t
               JOIN order_items oi ON oi.id = t.order_item_id
               WHERE oi.order_id = ?
               ORDER BY t.id`
	rows, err := s.q.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		var scannedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.OrderItemID, &t.Code, &t.Status, &scannedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if scannedAt.Valid {
			ts := scannedAt.Time
			t.ScannedAt = &ts
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// TicketsByUser lists every ticket the user owns, newest first, with
// the context the listing paths need for lazy expiry reconciliation.
func (s *Store) TicketsByUser(ctx context.Context, userID uint64) ([]ticketing.TicketDetail, error) {
	rows, err := s.q.QueryContext(ctx, ticketDetailColumns+` WHERE o.user_id = ? ORDER BY t.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ticketing.TicketDetail, 0)
	for rows.Next() {
		det, err := scanTicketDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *det)
	}
	return details, rows.Err()
}

// SetTicketStatus transitions a ticket only from the expected state,
// optionally stamping the venue-local scan time.  This compare-and-set
// is what serializes a door scan against the expiration sweep.
func (s *Store) SetTicketStatus(ctx context.Context, id uint64, from, to string, scannedAt *time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if scannedAt != nil {
		res, err = s.q.ExecContext(ctx,
			`UPDATE tickets SET status = ?, scanned_at = ?, updated_at = NOW() WHERE id = ? AND status = ?`,
			to, scannedAt.Format("2006-01-02 15:04:05"), id, from)
	} else {
		res, err = s.q.ExecContext(ctx,
			`UPDATE tickets SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?`,
			to, id, from)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpiryCandidates returns NOT_SCANNED tickets whose performance start
// is near enough that the sweep must evaluate them.  The SQL bound is
// generous (UTC plus the widest possible zone offset); the
// authoritative per-institution window check happens in Go.
func (s *Store) ExpiryCandidates(ctx context.Context) ([]ticketing.TicketDetail, error) {
	q := ticketDetailColumns + `
        WHERE t.status = ?
          AND p.starts_at <= DATE_ADD(UTC_TIMESTAMP(), INTERVAL 15 HOUR)`
	rows, err := s.q.QueryContext(ctx, q, ticketing.TicketNotScanned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ticketing.TicketDetail, 0)
	for rows.Next() {
		det, err := scanTicketDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *det)
	}
	return details, rows.Err()
}
