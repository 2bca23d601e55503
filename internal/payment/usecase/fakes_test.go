package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	outboxDomain "github.com/allisson/payment-reconciler/internal/outbox/domain"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxKey struct{}

// fakeTx holds the order locks taken inside one transaction and the state to restore on rollback.
type fakeTx struct {
	locks    []*sync.Mutex
	snapshot *fakeSnapshot
}

type fakeSnapshot struct {
	payments map[string]domain.Payment
	orders   map[int64]domain.Order
	events   int
}

// fakeDB is an in-memory stand-in for the payment, order and outbox tables. Order row
// locks are real mutexes held until the surrounding transaction ends.
type fakeDB struct {
	mu         sync.Mutex
	payments   map[string]*domain.Payment
	orders     map[int64]*domain.Order
	events     []*outboxDomain.OutboxEvent
	orderLocks map[int64]*sync.Mutex

	deductions   atomic.Int32
	failDeduct   error
	failUpdate   error
	outboxFailed error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		payments:   make(map[string]*domain.Payment),
		orders:     make(map[int64]*domain.Order),
		orderLocks: make(map[int64]*sync.Mutex),
	}
}

func (f *fakeDB) addOrder(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id] = &domain.Order{ID: id, Status: domain.OrderStatusPendingPayment}
	f.orderLocks[id] = &sync.Mutex{}
}

func (f *fakeDB) addPayment(p *domain.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Provider == "" {
		p.Provider = domain.ProviderName
	}
	f.payments[p.ID.String()] = p
}

func (f *fakeDB) payment(id string) domain.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.payments[id]
}

func (f *fakeDB) order(id int64) domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeDB) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeDB) snapshot() *fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSnapshot{
		payments: make(map[string]domain.Payment, len(f.payments)),
		orders:   make(map[int64]domain.Order, len(f.orders)),
		events:   len(f.events),
	}
	for k, v := range f.payments {
		s.payments[k] = *v
	}
	for k, v := range f.orders {
		s.orders[k] = *v
	}
	return s
}

func (f *fakeDB) restore(s *fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range s.payments {
		p := v
		f.payments[k] = &p
	}
	for k, v := range s.orders {
		o := v
		f.orders[k] = &o
	}
	f.events = f.events[:s.events]
}

// WithTx implements database.TxManager.
func (f *fakeDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		return fn(ctx)
	}

	tx := &fakeTx{snapshot: f.snapshot()}
	err := fn(context.WithValue(ctx, fakeTxKey{}, tx))
	if err != nil {
		f.restore(tx.snapshot)
	}
	for _, l := range tx.locks {
		l.Unlock()
	}
	return err
}

func (f *fakeDB) Create(ctx context.Context, p *domain.Payment) error {
	f.addPayment(p)
	return nil
}

func (f *fakeDB) Update(ctx context.Context, p *domain.Payment) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *p
	f.payments[p.ID.String()] = &stored
	return nil
}

func (f *fakeDB) GetByProviderReference(ctx context.Context, ref string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.IsActive() && p.ProviderReference != nil && *p.ProviderReference == ref {
			c := *p
			return &c, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (f *fakeDB) GetActiveByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	list, _ := f.ListActiveByOrderID(ctx, orderID)
	if len(list) == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return list[0], nil
}

func (f *fakeDB) ListActiveByOrderID(ctx context.Context, orderID int64) ([]*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []*domain.Payment
	for _, p := range f.payments {
		if p.IsActive() && p.OrderID == orderID {
			c := *p
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// fakeOrders exposes the orders of a fakeDB as an OrderRepository.
type fakeOrders struct{ db *fakeDB }

func (o fakeOrders) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order, ok := o.db.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	c := *order
	return &c, nil
}

func (o fakeOrders) GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	o.db.mu.Lock()
	lock, ok := o.db.orderLocks[orderID]
	o.db.mu.Unlock()
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	tx, inTx := ctx.Value(fakeTxKey{}).(*fakeTx)
	if !inTx {
		panic("GetForUpdate outside transaction")
	}
	lock.Lock()
	tx.locks = append(tx.locks, lock)

	return o.Get(ctx, orderID)
}

func (o fakeOrders) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	order, ok := o.db.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

type fakeOutbox struct{ db *fakeDB }

func (o fakeOutbox) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	if o.db.outboxFailed != nil {
		return o.db.outboxFailed
	}
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	o.db.events = append(o.db.events, event)
	return nil
}

type fakeInventory struct{ db *fakeDB }

func (i fakeInventory) DeductForOrder(ctx context.Context, orderID int64) error {
	if i.db.failDeduct != nil {
		return i.db.failDeduct
	}
	i.db.deductions.Add(1)
	return nil
}

// fakeProvider answers from a map and counts calls. A delay simulates a slow provider.
type fakeProvider struct {
	mu       sync.Mutex
	payments map[string]*domain.ProviderPayment
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (p *fakeProvider) set(pp *domain.ProviderPayment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payments == nil {
		p.payments = make(map[string]*domain.ProviderPayment)
	}
	p.payments[pp.ID] = pp
}

func (p *fakeProvider) GetPayment(ctx context.Context, id string) (*domain.ProviderPayment, error) {
	p.calls.Add(1)
	time.Sleep(p.delay)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pp, ok := p.payments[id]
	if !ok {
		return nil, domain.ErrProviderUnavailable
	}
	c := *pp
	return &c, nil
}

var errStoreDown = errors.New("store down")

// failingStore fails every operation.
type failingStore struct{ err error }

func (s failingStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, s.err
}

func (s failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, s.err
}

func (s failingStore) Get(context.Context, string) (string, error) {
	return "", s.err
}

func (s failingStore) Set(context.Context, string, string, time.Duration) error {
	return s.err
}

func (s failingStore) Delete(context.Context, ...string) error {
	return s.err
}

func (s failingStore) Close() error {
	return nil
}
