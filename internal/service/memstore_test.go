package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	apperrors "github.com/WASandaruwan/onlinesales-backend/pkg/errors"
)

// memStore is an in-memory, read-committed store. Writes made inside a
// transaction are staged and become visible on Commit. Lock takes a per-order
// mutex held until the transaction ends, like SELECT ... FOR UPDATE.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	items    map[string]domain.OrderItem
	rowLocks map[string]*sync.Mutex

	// failures maps an operation name ("Commit", "OrderItems.Create", ...)
	// to the error it returns.
	failures map[string]error

	begins    int
	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]domain.Order),
		items:    make(map[string]domain.OrderItem),
		rowLocks: make(map[string]*sync.Mutex),
		failures: make(map[string]error),
	}
}

func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *memStore) failure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *memStore) rowLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func (s *memStore) putOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *memStore) putItem(i domain.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[i.ID] = i
}

func (s *memStore) order(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *memStore) item(id string) (domain.OrderItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.items[id]
	return i, ok
}

// storedTotals sums the committed items of an order.
func (s *memStore) storedTotals(orderID string) domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.OrderItem
	for _, i := range s.items {
		if i.OrderID == orderID {
			items = append(items, i)
		}
	}
	return domain.SumItems(items)
}

func (s *memStore) counts() (begins, commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins, s.commits, s.rollbacks
}

// --- UnitOfWork ---

func (s *memStore) Begin(context.Context) (repository.Tx, error) {
	if err := s.failure("Begin"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.begins++
	s.mu.Unlock()

	v := &memView{
		store:  s,
		orders: make(map[string]*domain.Order),
		items:  make(map[string]*domain.OrderItem),
	}
	return &memTx{view: v}, nil
}

type memTx struct {
	view *memView
	done bool
}

func (t *memTx) Orders() repository.OrderRepository         { return &memOrders{v: t.view} }
func (t *memTx) OrderItems() repository.OrderItemRepository { return &memItems{v: t.view} }

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	if err := t.view.store.failure("Commit"); err != nil {
		return err
	}

	s := t.view.store
	s.mu.Lock()
	for id, o := range t.view.orders {
		if o == nil {
			delete(s.orders, id)
			continue
		}
		s.orders[id] = *o
	}
	for id, i := range t.view.items {
		if i == nil {
			delete(s.items, id)
			continue
		}
		s.items[id] = *i
	}
	s.commits++
	s.mu.Unlock()

	t.finish()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	s := t.view.store
	s.mu.Lock()
	s.rollbacks++
	s.mu.Unlock()

	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	for _, l := range t.view.held {
		l.Unlock()
	}
	t.view.held = nil
}

// memView reads committed rows overlaid with staged writes. A view without
// staging maps writes straight to the store.
type memView struct {
	store  *memStore
	orders map[string]*domain.Order
	items  map[string]*domain.OrderItem
	held   []*sync.Mutex
}

func (v *memView) staged() bool { return v.orders != nil }

func (v *memView) getOrder(id string) (domain.Order, bool) {
	if v.staged() {
		if o, ok := v.orders[id]; ok {
			if o == nil {
				return domain.Order{}, false
			}
			return *o, true
		}
	}
	return v.store.order(id)
}

func (v *memView) setOrder(o domain.Order) {
	if v.staged() {
		v.orders[o.ID] = &o
		return
	}
	v.store.putOrder(o)
}

func (v *memView) getItem(id string) (domain.OrderItem, bool) {
	if v.staged() {
		if i, ok := v.items[id]; ok {
			if i == nil {
				return domain.OrderItem{}, false
			}
			return *i, true
		}
	}
	return v.store.item(id)
}

func (v *memView) setItem(i domain.OrderItem) {
	if v.staged() {
		v.items[i.ID] = &i
		return
	}
	v.store.putItem(i)
}

func (v *memView) deleteItem(id string) {
	if v.staged() {
		v.items[id] = nil
		return
	}
	v.store.mu.Lock()
	delete(v.store.items, id)
	v.store.mu.Unlock()
}

func (v *memView) deleteOrder(id string) {
	if v.staged() {
		for _, i := range v.orderItems(repository.OrderItemFilter{OrderID: id}) {
			v.items[i.ID] = nil
		}
		v.orders[id] = nil
		return
	}
	v.store.mu.Lock()
	delete(v.store.orders, id)
	for itemID, i := range v.store.items {
		if i.OrderID == id {
			delete(v.store.items, itemID)
		}
	}
	v.store.mu.Unlock()
}

func (v *memView) orderItems(filter repository.OrderItemFilter) []domain.OrderItem {
	merged := make(map[string]domain.OrderItem)
	v.store.mu.Lock()
	for id, i := range v.store.items {
		merged[id] = i
	}
	v.store.mu.Unlock()

	if v.staged() {
		for id, i := range v.items {
			if i == nil {
				delete(merged, id)
				continue
			}
			merged[id] = *i
		}
	}

	out := make([]domain.OrderItem, 0)
	for _, i := range merged {
		if i.OrderID != filter.OrderID {
			continue
		}
		if filter.ExcludeID != nil && i.ID == *filter.ExcludeID {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// --- OrderRepository ---

type memOrders struct{ v *memView }

func (r *memOrders) Create(_ context.Context, o *domain.Order) error {
	if err := r.v.store.failure("Orders.Create"); err != nil {
		return err
	}
	r.v.setOrder(*o)
	return nil
}

func (r *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if err := r.v.store.failure("Orders.GetByID"); err != nil {
		return nil, err
	}
	o, ok := r.v.getOrder(id)
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return &o, nil
}

func (r *memOrders) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if err := r.v.store.failure("Orders.List"); err != nil {
		return nil, 0, err
	}
	r.v.store.mu.Lock()
	defer r.v.store.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, o := range r.v.store.orders {
		if filter.Currency != nil && o.Currency != *filter.Currency {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *memOrders) Lock(ctx context.Context, id string) (*domain.Order, error) {
	if err := r.v.store.failure("Orders.Lock"); err != nil {
		return nil, err
	}
	l := r.v.store.rowLock(id)
	l.Lock()
	r.v.held = append(r.v.held, l)
	return r.GetByID(ctx, id)
}

func (r *memOrders) UpdateTotals(_ context.Context, o *domain.Order) error {
	if err := r.v.store.failure("Orders.UpdateTotals"); err != nil {
		return err
	}
	cur, ok := r.v.getOrder(o.ID)
	if !ok {
		return apperrors.NotFound("order", o.ID)
	}
	cur.ApplyTotals(o.Totals())
	cur.UpdatedAt = o.UpdatedAt
	r.v.setOrder(cur)
	return nil
}

func (r *memOrders) Update(_ context.Context, o *domain.Order) error {
	if err := r.v.store.failure("Orders.Update"); err != nil {
		return err
	}
	cur, ok := r.v.getOrder(o.ID)
	if !ok {
		return apperrors.NotFound("order", o.ID)
	}
	cur.RefNo = o.RefNo
	cur.ExchangeRate = o.ExchangeRate
	cur.UpdatedAt = o.UpdatedAt
	r.v.setOrder(cur)
	return nil
}

func (r *memOrders) Delete(_ context.Context, id string) error {
	if err := r.v.store.failure("Orders.Delete"); err != nil {
		return err
	}
	if _, ok := r.v.getOrder(id); !ok {
		return apperrors.NotFound("order", id)
	}
	r.v.deleteOrder(id)
	return nil
}

// --- OrderItemRepository ---

type memItems struct{ v *memView }

func (r *memItems) Create(_ context.Context, i *domain.OrderItem) error {
	if err := r.v.store.failure("OrderItems.Create"); err != nil {
		return err
	}
	if _, ok := r.v.getItem(i.ID); ok {
		return apperrors.Conflict("order item " + i.ID + " already exists")
	}
	r.v.setItem(*i)
	return nil
}

func (r *memItems) Update(_ context.Context, i *domain.OrderItem) error {
	if err := r.v.store.failure("OrderItems.Update"); err != nil {
		return err
	}
	if cur, ok := r.v.getItem(i.ID); !ok || cur.OrderID != i.OrderID {
		return apperrors.NotFound("order item", i.ID)
	}
	r.v.setItem(*i)
	return nil
}

func (r *memItems) Delete(_ context.Context, orderID, id string) error {
	if err := r.v.store.failure("OrderItems.Delete"); err != nil {
		return err
	}
	if cur, ok := r.v.getItem(id); !ok || cur.OrderID != orderID {
		return apperrors.NotFound("order item", id)
	}
	r.v.deleteItem(id)
	return nil
}

func (r *memItems) GetByID(_ context.Context, id string) (*domain.OrderItem, error) {
	if err := r.v.store.failure("OrderItems.GetByID"); err != nil {
		return nil, err
	}
	i, ok := r.v.getItem(id)
	if !ok {
		return nil, apperrors.NotFound("order item", id)
	}
	return &i, nil
}

func (r *memItems) List(_ context.Context, filter repository.OrderItemFilter) ([]domain.OrderItem, error) {
	if err := r.v.store.failure("OrderItems.List"); err != nil {
		return nil, err
	}
	return r.v.orderItems(filter), nil
}

func (r *memItems) Sum(_ context.Context, filter repository.OrderItemFilter) (domain.Totals, error) {
	if err := r.v.store.failure("OrderItems.Sum"); err != nil {
		return domain.Totals{}, err
	}
	sum := domain.SumItems(r.v.orderItems(filter))
	// Postgres returns NUMERIC sums at column scale.
	sum.CurrencyTotal = sum.CurrencyTotal.Round(domain.MoneyScale)
	sum.Total = sum.Total.Round(domain.MoneyScale)
	return sum, nil
}

// directRepos returns repositories that bypass transactions, as the pool
// backed ones do.
func (s *memStore) directRepos() (*memOrders, *memItems) {
	v := &memView{store: s}
	return &memOrders{v: v}, &memItems{v: v}
}

var (
	_ repository.UnitOfWork          = (*memStore)(nil)
	_ repository.OrderRepository     = (*memOrders)(nil)
	_ repository.OrderItemRepository = (*memItems)(nil)
)
