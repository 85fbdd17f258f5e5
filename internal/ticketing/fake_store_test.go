package ticketing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/applauz/theatre-ticketing/internal/model"
	"github.com/applauz/theatre-ticketing/internal/queue"
)

// fakeStore is an in-memory Store for engine tests.  Transactions hold
// a snapshot: Atomically copies the whole state up front and restores
// it when fn errors, mirroring a database rollback.  A dedicated
// transaction mutex serializes concurrent Atomically calls the same way
// conflicting row locks would.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	institutions map[uint64]model.Institution
	performances map[uint64]PerformanceInfo
	orders       map[uint64]model.Order
	orderItems   map[uint64]model.OrderItem
	payments     map[uint64]model.Payment
	tickets      map[uint64]model.Ticket

	nextID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		institutions: make(map[uint64]model.Institution),
		performances: make(map[uint64]PerformanceInfo),
		orders:       make(map[uint64]model.Order),
		orderItems:   make(map[uint64]model.OrderItem),
		payments:     make(map[uint64]model.Payment),
		tickets:      make(map[uint64]model.Ticket),
	}
}

func (f *fakeStore) id() uint64 {
	f.nextID++
	return f.nextID
}

// ----- seeding helpers -----

func (f *fakeStore) addInstitution(name, tz string, capacity uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.institutions[id] = model.Institution{ID: id, Name: name, Capacity: capacity, Timezone: tz, IsActive: true}
	return id
}

func (f *fakeStore) addPerformance(instID uint64, title string, start time.Time, durationMin uint32, priceCents, available uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := f.institutions[instID]
	id := f.id()
	f.performances[id] = PerformanceInfo{
		Performance: model.Performance{
			ID: id, ShowID: id, StartsAt: start, PriceCents: priceCents, AvailableSeats: available,
		},
		ShowTitle:     title,
		DurationMin:   durationMin,
		InstitutionID: instID,
		Timezone:      inst.Timezone,
		Capacity:      inst.Capacity,
	}
	return id
}

func (f *fakeStore) addOrder(userID, instID uint64, status string, total uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.orders[id] = model.Order{ID: id, UserID: userID, InstitutionID: instID, Status: status, TotalAmountCents: total}
	return id
}

func (f *fakeStore) addOrderItem(orderID, perfID uint64, qty, price uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.orderItems[id] = model.OrderItem{ID: id, OrderID: orderID, PerformanceID: perfID, Quantity: qty, UnitPriceCents: price}
	return id
}

func (f *fakeStore) addTicket(itemID uint64, code, status string, scannedAt *time.Time) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.tickets[id] = model.Ticket{ID: id, OrderItemID: itemID, Code: code, Status: status, ScannedAt: scannedAt}
	return id
}

func (f *fakeStore) addPayment(orderID uint64, status, intentID string, amount uint32) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.payments[id] = model.Payment{ID: id, OrderID: orderID, Status: status, AmountCents: amount, StripePaymentIntentID: intentID}
	return id
}

func (f *fakeStore) available(perfID uint64) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.performances[perfID].AvailableSeats
}

func (f *fakeStore) orderStatus(orderID uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[orderID].Status
}

func (f *fakeStore) paymentStatus(paymentID uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[paymentID].Status
}

func (f *fakeStore) ticketStatus(ticketID uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[ticketID].Status
}

// ----- Store implementation -----

func (f *fakeStore) Atomically(ctx context.Context, fn func(Store) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

type fakeSnapshot struct {
	performances map[uint64]PerformanceInfo
	orders       map[uint64]model.Order
	orderItems   map[uint64]model.OrderItem
	payments     map[uint64]model.Payment
	tickets      map[uint64]model.Ticket
	nextID       uint64
}

func (f *fakeStore) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := fakeSnapshot{
		performances: make(map[uint64]PerformanceInfo, len(f.performances)),
		orders:       make(map[uint64]model.Order, len(f.orders)),
		orderItems:   make(map[uint64]model.OrderItem, len(f.orderItems)),
		payments:     make(map[uint64]model.Payment, len(f.payments)),
		tickets:      make(map[uint64]model.Ticket, len(f.tickets)),
		nextID:       f.nextID,
	}
	for k, v := range f.performances {
		s.performances[k] = v
	}
	for k, v := range f.orders {
		s.orders[k] = v
	}
	for k, v := range f.orderItems {
		s.orderItems[k] = v
	}
	for k, v := range f.payments {
		s.payments[k] = v
	}
	for k, v := range f.tickets {
		s.tickets[k] = v
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.performances = s.performances
	f.orders = s.orders
	f.orderItems = s.orderItems
	f.payments = s.payments
	f.tickets = s.tickets
	f.nextID = s.nextID
}

func (f *fakeStore) Institution(ctx context.Context, id uint64) (*model.Institution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.institutions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &inst, nil
}

func (f *fakeStore) PerformanceDetail(ctx context.Context, id uint64) (*PerformanceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.performances[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) PerformanceSlots(ctx context.Context, institutionID uint64) ([]PerformanceSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var slots []PerformanceSlot
	for _, p := range f.performances {
		if p.InstitutionID == institutionID {
			slots = append(slots, PerformanceSlot{PerformanceID: p.ID, StartsAt: p.StartsAt, DurationMin: p.DurationMin})
		}
	}
	return slots, nil
}

func (f *fakeStore) ReserveSeats(ctx context.Context, performanceID uint64, qty uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.performances[performanceID]
	if !ok {
		return ErrNotFound
	}
	if p.AvailableSeats < qty {
		return &InsufficientSeatsError{PerformanceID: performanceID, Requested: qty, Remaining: p.AvailableSeats}
	}
	p.AvailableSeats -= qty
	f.performances[performanceID] = p
	return nil
}

func (f *fakeStore) ReleaseSeats(ctx context.Context, performanceID uint64, qty uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.performances[performanceID]
	if !ok {
		return ErrNotFound
	}
	p.AvailableSeats += qty
	if p.AvailableSeats > p.Capacity {
		p.AvailableSeats = p.Capacity
	}
	f.performances[performanceID] = p
	return nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, o *model.Order, items []model.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.id()
	o.CreatedAt = time.Now().UTC()
	f.orders[o.ID] = *o
	for i := range items {
		items[i].ID = f.id()
		items[i].OrderID = o.ID
		f.orderItems[items[i].ID] = items[i]
	}
	return nil
}

func (f *fakeStore) Order(ctx context.Context, id uint64) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) OrderItems(ctx context.Context, orderID uint64) ([]model.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []model.OrderItem
	for _, it := range f.orderItems {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (f *fakeStore) SetOrderStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	f.orders[id] = o
	return true, nil
}

func (f *fakeStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	f.payments[p.ID] = *p
	return nil
}

func (f *fakeStore) PaymentByIntent(ctx context.Context, intentID string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.StripePaymentIntentID == intentID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) OpenPayment(ctx context.Context, orderID uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.Payment
	for _, p := range f.payments {
		if p.OrderID != orderID {
			continue
		}
		if p.Status != PaymentInitiated && p.Status != PaymentFailed {
			continue
		}
		if best == nil || p.ID > best.ID {
			cp := p
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) SucceededPayment(ctx context.Context, orderID uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && p.Status == PaymentSucceeded {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) SetPaymentStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	f.payments[id] = p
	return true, nil
}

func (f *fakeStore) InsertTickets(ctx context.Context, tickets []model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range tickets {
		tickets[i].ID = f.id()
		f.tickets[tickets[i].ID] = tickets[i]
	}
	return nil
}

func (f *fakeStore) detailLocked(t model.Ticket) (*TicketDetail, error) {
	item, ok := f.orderItems[t.OrderItemID]
	if !ok {
		return nil, fmt.Errorf("orphan ticket %d", t.ID)
	}
	order, ok := f.orders[item.OrderID]
	if !ok {
		return nil, fmt.Errorf("orphan item %d", item.ID)
	}
	perf, ok := f.performances[item.PerformanceID]
	if !ok {
		return nil, fmt.Errorf("orphan performance ref %d", item.PerformanceID)
	}
	return &TicketDetail{
		Ticket:           t,
		OrderID:          order.ID,
		OrderStatus:      order.Status,
		UserID:           order.UserID,
		PerformanceID:    perf.ID,
		PerformanceStart: perf.StartsAt,
		ShowTitle:        perf.ShowTitle,
		InstitutionID:    perf.InstitutionID,
		Timezone:         perf.Timezone,
	}, nil
}

func (f *fakeStore) TicketByCode(ctx context.Context, code string) (*TicketDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.Code == code {
			return f.detailLocked(t)
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) TicketsByOrder(ctx context.Context, orderID uint64) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Ticket
	for _, t := range f.tickets {
		item, ok := f.orderItems[t.OrderItemID]
		if ok && item.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) TicketsByUser(ctx context.Context, userID uint64) ([]TicketDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TicketDetail
	for _, t := range f.tickets {
		det, err := f.detailLocked(t)
		if err != nil {
			return nil, err
		}
		if det.UserID == userID {
			out = append(out, *det)
		}
	}
	return out, nil
}

func (f *fakeStore) SetTicketStatus(ctx context.Context, id uint64, from, to string, scannedAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.ScannedAt = scannedAt
	f.tickets[id] = t
	return true, nil
}

func (f *fakeStore) ExpiryCandidates(ctx context.Context) ([]TicketDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TicketDetail
	for _, t := range f.tickets {
		if t.Status != TicketNotScanned {
			continue
		}
		det, err := f.detailLocked(t)
		if err != nil {
			return nil, err
		}
		out = append(out, *det)
	}
	return out, nil
}

// ----- gateway and publisher fakes -----

type fakeGateway struct {
	mu         sync.Mutex
	nextIntent int
	confirmed  map[string]bool
	reusable   map[string]bool
	refunds    []string
	refundErr  error
	createErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{confirmed: make(map[string]bool), reusable: make(map[string]bool)}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, orderID uint64, amountCents uint32) (PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return PaymentIntent{}, g.createErr
	}
	g.nextIntent++
	id := fmt.Sprintf("pi_%d", g.nextIntent)
	g.reusable[id] = true
	return PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) Reusable(ctx context.Context, intentID string) (PaymentIntent, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reusable[intentID] {
		return PaymentIntent{ID: intentID, ClientSecret: intentID + "_secret"}, true, nil
	}
	return PaymentIntent{}, false, nil
}

func (g *fakeGateway) Confirmed(ctx context.Context, intentID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmed[intentID], nil
}

func (g *fakeGateway) Refund(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, intentID)
	return nil
}

func (g *fakeGateway) markConfirmed(intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmed[intentID] = true
	g.reusable[intentID] = false
}

type fakePublisher struct {
	mu       sync.Mutex
	scanned  []queue.TicketScannedEvent
	expired  []queue.TicketExpiredEvent
	refunded []queue.OrderRefundedEvent
}

func (p *fakePublisher) TicketScanned(ctx context.Context, ev queue.TicketScannedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanned = append(p.scanned, ev)
	return nil
}

func (p *fakePublisher) TicketExpired(ctx context.Context, ev queue.TicketExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, ev)
	return nil
}

func (p *fakePublisher) OrderRefunded(ctx context.Context, ev queue.OrderRefundedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunded = append(p.refunded, ev)
	return nil
}

// newTestEngine wires an engine over fresh fakes and hands them back
// for assertions.
func newTestEngine() (*Engine, *fakeStore, *fakeGateway, *fakePublisher) {
	store := newFakeStore()
	gateway := newFakeGateway()
	events := &fakePublisher{}
	return New(store, gateway, events), store, gateway, events
}
