package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	apperrors "github.com/WASandaruwan/onlinesales-backend/pkg/errors"
)

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	RefNo        string
	Currency     string
	ExchangeRate decimal.Decimal
}

// UpdateOrderInput is a partial update of the order header; nil fields are
// kept.
type UpdateOrderInput struct {
	RefNo        *string
	ExchangeRate *decimal.Decimal
}

// CreateOrder creates an order without items.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if len(input.Currency) != 3 {
		return nil, apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}
	if !input.ExchangeRate.IsPositive() {
		return nil, apperrors.InvalidInput("exchange_rate must be greater than zero")
	}

	now := s.stamp()
	order := &domain.Order{
		ID:            uuid.New().String(),
		RefNo:         strings.TrimSpace(input.RefNo),
		Currency:      strings.ToUpper(input.Currency),
		ExchangeRate:  input.ExchangeRate,
		CurrencyTotal: decimal.Zero,
		Total:         decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.created event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("currency", order.Currency),
		slog.String("exchange_rate", order.ExchangeRate.String()),
	)

	return order, nil
}

// GetOrder retrieves an order by its ID, reading through the cache when one
// is configured. Cache failures fall back to the database.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "order cache read failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, order); err != nil {
			s.logger.WarnContext(ctx, "order cache write failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return order, nil
}

// ListOrders returns a filtered, paginated list of orders.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateOrder changes the order header. A new exchange rate re-prices every
// item and the order totals in the same transaction.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, input UpdateOrderInput) (*domain.Order, error) {
	if input.ExchangeRate != nil && !input.ExchangeRate.IsPositive() {
		return nil, apperrors.InvalidInput("exchange_rate must be greater than zero")
	}

	start := time.Now()
	repriced := 0

	var updated *domain.Order
	err := repository.RunInTx(ctx, s.uow, func(tx repository.Tx) error {
		locked, err := tx.Orders().Lock(ctx, id)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		now := s.nextStamp(locked.UpdatedAt)

		if input.RefNo != nil {
			locked.RefNo = strings.TrimSpace(*input.RefNo)
		}
		rateChanged := input.ExchangeRate != nil && !input.ExchangeRate.Equal(locked.ExchangeRate)
		if rateChanged {
			locked.ExchangeRate = *input.ExchangeRate
		}
		locked.UpdatedAt = now

		if err := tx.Orders().Update(ctx, locked); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if rateChanged {
			items, err := tx.OrderItems().List(ctx, repository.OrderItemFilter{OrderID: id})
			if err != nil {
				return fmt.Errorf("list order items: %w", err)
			}
			for i := range items {
				items[i].Recalculate(locked.ExchangeRate)
				items[i].UpdatedAt = now
				if err := tx.OrderItems().Update(ctx, &items[i]); err != nil {
					return fmt.Errorf("reprice order item %s: %w", items[i].ID, err)
				}
			}
			locked.ApplyTotals(domain.SumItems(items))
			if err := tx.Orders().UpdateTotals(ctx, locked); err != nil {
				return fmt.Errorf("update order totals: %w", err)
			}
			repriced = len(items)
		}

		updated = locked
		return nil
	})
	if input.ExchangeRate != nil {
		observeRecalculation(opUpdateOrder, start, err)
	}
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}

	s.afterCommit(ctx, id, updated.UpdatedAt, "order.updated", func(p EventPublisher) error {
		return p.PublishOrderUpdated(ctx, updated)
	})

	s.logger.InfoContext(ctx, "order updated",
		slog.String("order_id", id),
		slog.String("exchange_rate", updated.ExchangeRate.String()),
		slog.Int("repriced_items", repriced),
	)

	return updated, nil
}

// DeleteOrder removes an order together with its items. The order is locked
// first so that the delete waits for a running recalculation.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	var version time.Time
	err := repository.RunInTx(ctx, s.uow, func(tx repository.Tx) error {
		locked, err := tx.Orders().Lock(ctx, id)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if err := tx.Orders().Delete(ctx, id); err != nil {
			return err
		}
		version = s.nextStamp(locked.UpdatedAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.afterCommit(ctx, id, version, "order.deleted", func(p EventPublisher) error {
		return p.PublishOrderDeleted(ctx, id)
	})

	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", id))
	return nil
}
