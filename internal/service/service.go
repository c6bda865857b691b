package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
)

// EventPublisher emits domain events after a change has been committed.
// *event.Producer implements it.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, o *domain.Order) error
	PublishOrderUpdated(ctx context.Context, o *domain.Order) error
	PublishOrderDeleted(ctx context.Context, orderID string) error
	PublishOrderItemAdded(ctx context.Context, o *domain.Order, item *domain.OrderItem) error
	PublishOrderItemUpdated(ctx context.Context, o *domain.Order, item *domain.OrderItem) error
	PublishOrderItemDeleted(ctx context.Context, o *domain.Order, item *domain.OrderItem) error
}

// OrderCache holds read copies of orders. *redis.OrderCache implements it.
//
// Entries are versioned by the order's UpdatedAt. Set never replaces a newer
// entry and Invalidate leaves a marker at the given version, so a read that
// raced with a committed change cannot put the older row back.
type OrderCache interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	Set(ctx context.Context, o *domain.Order) error
	Invalidate(ctx context.Context, id string, version time.Time) error
}

// OrderService implements order and order item operations. Every change to
// the items of an order goes through the recalculator methods in
// order_item.go so that the order's totals always match its items.
type OrderService struct {
	uow    repository.UnitOfWork
	orders repository.OrderRepository
	items  repository.OrderItemRepository
	events EventPublisher
	cache  OrderCache
	logger *slog.Logger
	now    func() time.Time
}

// NewOrderService creates a new order service. orders and items are used for
// reads outside a transaction. events and cache may be nil.
func NewOrderService(
	uow repository.UnitOfWork,
	orders repository.OrderRepository,
	items repository.OrderItemRepository,
	events EventPublisher,
	cache OrderCache,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		uow:    uow,
		orders: orders,
		items:  items,
		events: events,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// stamp returns the current time at the precision Postgres stores.
func (s *OrderService) stamp() time.Time {
	return s.now().Truncate(time.Microsecond)
}

// nextStamp returns a stamp strictly after prev. Writes to one order are
// serialised by its row lock, so its UpdatedAt only moves forward.
func (s *OrderService) nextStamp(prev time.Time) time.Time {
	now := s.stamp()
	if floor := prev.Truncate(time.Microsecond).Add(time.Microsecond); now.Before(floor) {
		return floor
	}
	return now
}

// afterCommit drops the cached order and publishes an event. Both are best
// effort: the change is already durable. version is the committed UpdatedAt
// of the order.
func (s *OrderService) afterCommit(ctx context.Context, orderID string, version time.Time, eventName string, publish func(EventPublisher) error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, orderID, version); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate cached order",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.events == nil {
		return
	}
	if err := publish(s.events); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish "+eventName+" event",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
