package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/ticketing"
)

// dbtx is the subset of *sql.DB and *sql.Tx the store needs, allowing
// the same query methods to run either on the pool or inside a
// transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements ticketing.Store over MySQL.  A Store constructed
// with NewStore issues statements on the pool; Atomically hands the
// callback a transaction-scoped Store whose statements all run on one
// *sql.Tx.
type Store struct {
	db *sql.DB // nil when transaction-scoped
	q  dbtx
}

// NewStore returns a pool-scoped Store.
func NewStore(db *sql.DB) *Store { return &Store{db: db, q: db} }

// DB exposes the underlying pool for wiring repositories that share it.
func (s *Store) DB() *sql.DB { return s.db }

// Atomically runs fn inside a single transaction.  Nested calls reuse
// the enclosing transaction, so engine helpers can compose without
// caring whether a transaction is already open.
func (s *Store) Atomically(ctx context.Context, fn func(ticketing.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Institution fetches one institution row.
func (s *Store) Institution(ctx context.Context, id uint64) (*model.Institution, error) {
	const q = `SELECT id, name, capacity, timezone, is_active, created_at, updated_at
               FROM institutions WHERE id = ?`
	var inst model.Institution
	err := s.q.QueryRowContext(ctx, q, id).Scan(
		&inst.ID, &inst.Name, &inst.Capacity, &inst.Timezone, &inst.IsActive,
		&inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticketing.ErrNotFound
		}
		return nil, err
	}
	return &inst, nil
}

// PerformanceDetail fetches a performance joined with its show and
// institution context.
func (s *Store) PerformanceDetail(ctx context.Context, id uint64) (*ticketing.PerformanceInfo, error) {
	const q = `SELECT p.id, p.show_id, p.starts_at, p.price_cents, p.available_seats,
                      p.created_at, p.updated_at,
                      sh.title, sh.duration_min,
                      i.id, i.timezone, i.capacity
               FROM performances p
               JOIN shows sh ON sh.id = p.show_id
               JOIN institutions i ON i.id = sh.institution_id
               WHERE p.id = ?`
	var info ticketing.PerformanceInfo
	err := s.q.QueryRowContext(ctx, q, id).Scan(
		&info.ID, &info.ShowID, &info.StartsAt, &info.PriceCents, &info.AvailableSeats,
		&info.CreatedAt, &info.UpdatedAt,
		&info.ShowTitle, &info.DurationMin,
		&info.InstitutionID, &info.Timezone, &info.Capacity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticketing.ErrNotFound
		}
		return nil, err
	}
	return &info, nil
}

// PerformanceSlots returns every performance scheduled at the
// institution with its show's running time, for the overlap check.
func (s *Store) PerformanceSlots(ctx context.Context, institutionID uint64) ([]ticketing.PerformanceSlot, error) {
	const q = `SELECT p.id, p.starts_at, sh.duration_min
               FROM performances p
               JOIN shows sh ON sh.id = p.show_id
               WHERE sh.institution_id = ?`
	rows, err := s.q.QueryContext(ctx, q, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]ticketing.PerformanceSlot, 0)
	for rows.Next() {
		var sl ticketing.PerformanceSlot
		if err := rows.Scan(&sl.PerformanceID, &sl.StartsAt, &sl.DurationMin); err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

// ReserveSeats is the authoritative inventory decrement: an atomic
// conditional UPDATE that only applies while enough seats remain.
// Two captures racing for the last seats serialize on the row; the
// loser's UPDATE matches nothing and the current remainder is read
// back for the error message.
func (s *Store) ReserveSeats(ctx context.Context, performanceID uint64, qty uint32) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE performances SET available_seats = available_seats - ?, updated_at = NOW()
         WHERE id = ? AND available_seats >= ?`,
		qty, performanceID, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var remaining uint32
	err = s.q.QueryRowContext(ctx,
		`SELECT available_seats FROM performances WHERE id = ?`, performanceID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ticketing.ErrNotFound
		}
		return err
	}
	return &ticketing.InsufficientSeatsError{PerformanceID: performanceID, Requested: qty, Remaining: remaining}
}

// ReleaseSeats returns seats to the pool, capped at the venue's
// capacity so a double release can never push the counter past it.
func (s *Store) ReleaseSeats(ctx context.Context, performanceID uint64, qty uint32) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE performances p
         JOIN shows sh ON sh.id = p.show_id
         JOIN institutions i ON i.id = sh.institution_id
         SET p.available_seats = LEAST(p.available_seats + ?, i.capacity), p.updated_at = NOW()
         WHERE p.id = ?`,
		qty, performanceID)
	return err
}

// CreateOrder inserts the order and its items, populating generated
// IDs on the provided records.
func (s *Store) CreateOrder(ctx context.Context, o *model.Order, items []model.OrderItem) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO orders (user_id, institution_id, status, total_amount_cents) VALUES (?, ?, ?, ?)`,
		o.UserID, o.InstitutionID, o.Status, o.TotalAmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	for i := range items {
		items[i].OrderID = o.ID
		res, err := s.q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, performance_id, quantity, unit_price_cents) VALUES (?, ?, ?, ?)`,
			items[i].OrderID, items[i].PerformanceID, items[i].Quantity, items[i].UnitPriceCents)
		if err != nil {
			return err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		items[i].ID = uint64(itemID)
	}
	return nil
}

// Order fetches one order row.
func (s *Store) Order(ctx context.Context, id uint64) (*model.Order, error) {
	const q = `SELECT id, user_id, institution_id, status, total_amount_cents, created_at, updated_at
               FROM orders WHERE id = ?`
	var o model.Order
	err := s.q.QueryRowContext(ctx, q, id).Scan(
		&o.ID, &o.UserID, &o.InstitutionID, &o.Status, &o.TotalAmountCents, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticketing.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// OrderItems lists an order's items in insertion order.
func (s *Store) OrderItems(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	const q = `SELECT id, order_id, performance_id, quantity, unit_price_cents, created_at
               FROM order_items WHERE order_id = ? ORDER BY id`
	rows, err := s.q.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.OrderItem, 0)
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.PerformanceID, &it.Quantity, &it.UnitPriceCents, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// OrdersByUser lists a user's orders, newest first.
func (s *Store) OrdersByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	const q = `SELECT id, user_id, institution_id, status, total_amount_cents, created_at, updated_at
               FROM orders WHERE user_id = ? ORDER BY id DESC`
	rows, err := s.q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := make([]model.Order, 0)
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.InstitutionID, &o.Status, &o.TotalAmountCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SetOrderStatus transitions an order only when it is still in the
// expected state, reporting whether the transition applied.
func (s *Store) SetOrderStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CreatePayment inserts a payment attempt and populates its ID.
func (s *Store) CreatePayment(ctx context.Context, p *model.Payment) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO payments (order_id, status, amount_cents, stripe_payment_intent_id) VALUES (?, ?, ?, ?)`,
		p.OrderID, p.Status, p.AmountCents, p.StripePaymentIntentID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

func (s *Store) scanPayment(row *sql.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Status, &p.AmountCents, &p.StripePaymentIntentID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticketing.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// PaymentByIntent resolves a payment through its gateway intent id,
// the join key the webhook reconciler uses.
func (s *Store) PaymentByIntent(ctx context.Context, intentID string) (*model.Payment, error) {
	const q = `SELECT id, order_id, status, amount_cents, stripe_payment_intent_id, created_at, updated_at
               FROM payments WHERE stripe_payment_intent_id = ? LIMIT 1`
	return s.scanPayment(s.q.QueryRowContext(ctx, q, intentID))
}

// OpenPayment returns the most recent payment attempt for the order
// that could still be driven to success.
func (s *Store) OpenPayment(ctx context.Context, orderID uint64) (*model.Payment, error) {
	const q = `SELECT id, order_id, status, amount_cents, stripe_payment_intent_id, created_at, updated_at
               FROM payments WHERE order_id = ? AND status IN (?, ?)
               ORDER BY id DESC LIMIT 1`
	return s.scanPayment(s.q.QueryRowContext(ctx, q, orderID, ticketing.PaymentInitiated, ticketing.PaymentFailed))
}

// SucceededPayment returns the order's captured payment.
func (s *Store) SucceededPayment(ctx context.Context, orderID uint64) (*model.Payment, error) {
	const q = `SELECT id, order_id, status, amount_cents, stripe_payment_intent_id, created_at, updated_at
               FROM payments WHERE order_id = ? AND status = ? ORDER BY id DESC LIMIT 1`
	return s.scanPayment(s.q.QueryRowContext(ctx, q, orderID, ticketing.PaymentSucceeded))
}

// SetPaymentStatus transitions a payment only from the expected state.
func (s *Store) SetPaymentStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
