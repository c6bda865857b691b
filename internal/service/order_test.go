package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	redisrepo "github.com/WASandaruwan/onlinesales-backend/internal/repository/redis"
	apperrors "github.com/WASandaruwan/onlinesales-backend/pkg/errors"
)

// --- CreateOrder ---

func TestCreateOrder_Success(t *testing.T) {
	env := newTestEnv(t)

	o, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{
		RefNo:        " INV-1 ",
		Currency:     "usd",
		ExchangeRate: dec("0.92"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "INV-1", o.RefNo)
	assert.Equal(t, "USD", o.Currency)
	assert.True(t, o.Total.IsZero())
	assert.Zero(t, o.Quantity)

	stored, ok := env.store.order(o.ID)
	require.True(t, ok)
	assert.True(t, stored.ExchangeRate.Equal(dec("0.92")))
	assert.Equal(t, []string{"order.created"}, env.events.published())
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateOrderInput
	}{
		{"short currency", CreateOrderInput{Currency: "US", ExchangeRate: dec("1")}},
		{"zero rate", CreateOrderInput{Currency: "USD", ExchangeRate: dec("0")}},
		{"negative rate", CreateOrderInput{Currency: "USD", ExchangeRate: dec("-1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.svc.CreateOrder(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Empty(t, env.store.orders)
		})
	}
}

func TestCreateOrder_RepositoryError(t *testing.T) {
	env := newTestEnv(t)
	env.store.failOn("Orders.Create", errors.New("db down"))

	_, err := env.svc.CreateOrder(context.Background(), CreateOrderInput{Currency: "USD", ExchangeRate: dec("1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Empty(t, env.events.published())
}

// --- GetOrder ---

func TestGetOrder_NoCache(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder("order-1", "1")

	o, err := env.svc.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)

	_, err = env.svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrder_CacheHit(t *testing.T) {
	env := newTestEnv(t)
	cache := new(mockCache)
	env.svc.cache = cache

	cached := &domain.Order{ID: "order-1", Currency: "EUR"}
	cache.On("Get", mock.Anything, "order-1").Return(cached, nil)

	o, err := env.svc.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Same(t, cached, o)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestGetOrder_CacheMissFillsCache(t *testing.T) {
	env := newTestEnv(t)
	cache := new(mockCache)
	env.svc.cache = cache
	env.seedOrder("order-1", "1")

	cache.On("Get", mock.Anything, "order-1").Return(nil, apperrors.NotFound("cached order", "order-1"))
	cache.On("Set", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool { return o.ID == "order-1" })).Return(nil)

	o, err := env.svc.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	cache.AssertExpectations(t)
}

func TestGetOrder_CacheErrorFallsBack(t *testing.T) {
	env := newTestEnv(t)
	cache := new(mockCache)
	env.svc.cache = cache
	env.seedOrder("order-1", "1")

	cache.On("Get", mock.Anything, "order-1").Return(nil, errors.New("redis: connection refused"))
	cache.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused"))

	o, err := env.svc.GetOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
}

// hookedOrders runs afterGet once, right after the first GetByID read.
type hookedOrders struct {
	repository.OrderRepository
	once     sync.Once
	afterGet func()
}

func (h *hookedOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := h.OrderRepository.GetByID(ctx, id)
	h.once.Do(h.afterGet)
	return o, err
}

func newRedisCache(t *testing.T) *redisrepo.OrderCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisrepo.NewOrderCache(client, time.Minute)
}

// A read that loses the race against a recalculation returns the row it read,
// but must not leave that row in the cache.
func TestGetOrder_RacingReadDoesNotCacheStaleOrder(t *testing.T) {
	env := newTestEnv(t)
	env.svc.cache = newRedisCache(t)
	ctx := context.Background()

	o := env.seedOrder("order-1", "1")
	env.svc.orders = &hookedOrders{
		OrderRepository: env.svc.orders,
		afterGet:        func() { env.addItem(t, o, "10", 2) },
	}

	first, err := env.svc.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, first.Total.IsZero(), "read before the item was added")

	second, err := env.svc.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, second.Total.Equal(dec("20")), "total %s", second.Total)
	assert.True(t, second.Totals().Equal(env.store.storedTotals("order-1")))
}

func TestGetOrder_CachedCopyDroppedAfterChange(t *testing.T) {
	env := newTestEnv(t)
	env.svc.cache = newRedisCache(t)
	ctx := context.Background()
	o := env.seedOrder("order-1", "1")

	_, err := env.svc.GetOrder(ctx, "order-1")
	require.NoError(t, err)

	env.addItem(t, o, "3", 3)
	got, err := env.svc.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(dec("9")), "total %s", got.Total)

	require.NoError(t, env.svc.DeleteOrder(ctx, "order-1"))
	_, err = env.svc.GetOrder(ctx, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Version stamps ---

func TestOrderChanges_UpdatedAtStrictlyIncreases(t *testing.T) {
	env := newTestEnv(t)
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 6789, time.UTC)
	env.svc.now = func() time.Time { return frozen }
	ctx := context.Background()

	o, err := env.svc.CreateOrder(ctx, CreateOrderInput{Currency: "EUR", ExchangeRate: dec("1")})
	require.NoError(t, err)
	assert.True(t, o.UpdatedAt.Equal(frozen.Truncate(time.Microsecond)))

	prev := o.UpdatedAt
	item := env.addItem(t, o, "1", 1)
	assert.True(t, o.UpdatedAt.After(prev))

	prev = o.UpdatedAt
	item.Quantity = 2
	_, err = env.svc.UpdateOrderItem(ctx, o, item)
	require.NoError(t, err)
	assert.True(t, o.UpdatedAt.After(prev))

	prev = o.UpdatedAt
	updated, err := env.svc.UpdateOrder(ctx, o.ID, UpdateOrderInput{RefNo: strPtr("INV-2")})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(prev))
	assert.Zero(t, updated.UpdatedAt.Nanosecond()%1000, "stamps are kept at microsecond precision")
}

// --- ListOrders ---

func TestListOrders_FiltersByCurrency(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder("order-1", "1")
	usd := domain.Order{ID: "order-2", Currency: "USD", ExchangeRate: dec("1")}
	env.store.putOrder(usd)

	orders, total, err := env.svc.ListOrders(context.Background(), repository.OrderFilter{Currency: strPtr("USD")})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-2", orders[0].ID)
}

type captureOrders struct {
	repository.OrderRepository
	filter repository.OrderFilter
}

func (c *captureOrders) List(_ context.Context, f repository.OrderFilter) ([]domain.Order, int, error) {
	c.filter = f
	return []domain.Order{}, 0, nil
}

func TestListOrders_ClampsPaging(t *testing.T) {
	env := newTestEnv(t)
	capture := &captureOrders{}
	env.svc.orders = capture

	_, _, err := env.svc.ListOrders(context.Background(), repository.OrderFilter{Page: -1, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, capture.filter.Page)
	assert.Equal(t, 100, capture.filter.PerPage)

	_, _, err = env.svc.ListOrders(context.Background(), repository.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 20, capture.filter.PerPage)
}

// --- UpdateOrder ---

func TestUpdateOrder_ExchangeRateRepricesItems(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedOrder("order-1", "1")
	a := env.addItem(t, o, "10", 2)
	b := env.addItem(t, o, "5", 1)
	require.True(t, o.Total.Equal(dec("25")))

	updated, err := env.svc.UpdateOrder(context.Background(), "order-1", UpdateOrderInput{ExchangeRate: decPtr("1.2")})
	require.NoError(t, err)

	assert.True(t, updated.ExchangeRate.Equal(dec("1.2")))
	assert.True(t, updated.CurrencyTotal.Equal(dec("25")))
	assert.True(t, updated.Total.Equal(dec("30")))
	assert.Equal(t, 3, updated.Quantity)

	storedA, _ := env.store.item(a.ID)
	storedB, _ := env.store.item(b.ID)
	assert.True(t, storedA.Total.Equal(dec("24")))
	assert.True(t, storedB.Total.Equal(dec("6")))
	env.assertConsistent(t, updated)
	assert.Contains(t, env.events.published(), "order.updated")
}

func TestUpdateOrder_RefNoOnly(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedOrder("order-1", "1")
	item := env.addItem(t, o, "10", 1)
	itemBefore, _ := env.store.item(item.ID)

	updated, err := env.svc.UpdateOrder(context.Background(), "order-1", UpdateOrderInput{RefNo: strPtr("INV-9")})
	require.NoError(t, err)
	assert.Equal(t, "INV-9", updated.RefNo)

	itemAfter, _ := env.store.item(item.ID)
	assert.Equal(t, itemBefore.UpdatedAt, itemAfter.UpdatedAt, "items untouched")
}

func TestUpdateOrder_InvalidRate(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder("order-1", "1")

	_, err := env.svc.UpdateOrder(context.Background(), "order-1", UpdateOrderInput{ExchangeRate: decPtr("0")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateOrder_RepriceFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	o := env.seedOrder("order-1", "1")
	env.addItem(t, o, "10", 1)
	env.store.failOn("OrderItems.Update", errors.New("lock timeout"))

	_, err := env.svc.UpdateOrder(context.Background(), "order-1", UpdateOrderInput{ExchangeRate: decPtr("3")})
	require.Error(t, err)

	stored, _ := env.store.order("order-1")
	assert.True(t, stored.ExchangeRate.Equal(dec("1")))
	assert.True(t, stored.Total.Equal(dec("10")))
}

func TestUpdateOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UpdateOrder(context.Background(), "missing", UpdateOrderInput{RefNo: strPtr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- DeleteOrder ---

func TestDeleteOrder_RemovesItems(t *testing.T) {
	env := newTestEnv(t)
	cache := new(mockCache)
	env.svc.cache = cache
	o := env.seedOrder("order-1", "1")
	cache.On("Invalidate", mock.Anything, "order-1", mock.Anything).Return(nil)
	env.addItem(t, o, "10", 1)

	require.NoError(t, env.svc.DeleteOrder(context.Background(), "order-1"))

	_, ok := env.store.order("order-1")
	assert.False(t, ok)
	assert.Empty(t, env.store.items)
	assert.Contains(t, env.events.published(), "order.deleted")
	cache.AssertNumberOfCalls(t, "Invalidate", 2)
	deletedAt := cache.Calls[len(cache.Calls)-1].Arguments.Get(2).(time.Time)
	assert.True(t, deletedAt.After(o.UpdatedAt), "delete is invalidated at a newer version")

	err := env.svc.DeleteOrder(context.Background(), "order-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
