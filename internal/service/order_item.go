package service

import (
	"context"
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

// AddOrderItem prices item against the order's exchange rate, inserts it and
// stores the order's new totals in one transaction. It returns the id of the
// new item, generated when item.ID is empty.
//
// order and item are overwritten with the committed state on success and
// left untouched on failure.
func (s *OrderService) AddOrderItem(ctx context.Context, order *domain.Order, item *domain.OrderItem) (string, error) {
	start := time.Now()

	added := *item
	if added.ID == "" {
		added.ID = uuid.New().String()
	}
	added.OrderID = order.ID

	var updated *domain.Order
	err := repository.RunInTx(ctx, s.uow, func(tx repository.Tx) error {
		locked, err := tx.Orders().Lock(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		now := s.nextStamp(locked.UpdatedAt)
		added.CreatedAt = now
		added.UpdatedAt = now
		added.Recalculate(locked.ExchangeRate)

		// The new row is not stored yet, so every stored item is a sibling.
		siblings, err := tx.OrderItems().Sum(ctx, repository.OrderItemFilter{OrderID: order.ID})
		if err != nil {
			return fmt.Errorf("sum order items: %w", err)
		}

		if err := tx.OrderItems().Create(ctx, &added); err != nil {
			return fmt.Errorf("create order item: %w", err)
		}

		locked.ApplyTotals(domain.CalculateTotals(siblings, added))
		locked.UpdatedAt = now
		if err := tx.Orders().UpdateTotals(ctx, locked); err != nil {
			return fmt.Errorf("update order totals: %w", err)
		}

		updated = locked
		return nil
	})
	observeRecalculation(opAddItem, start, err)
	if err != nil {
		s.logFailure(ctx, opAddItem, order.ID, added.ID, err)
		return "", err
	}

	*item = added
	*order = *updated

	s.afterCommit(ctx, order.ID, order.UpdatedAt, "order_item.added", func(p EventPublisher) error {
		return p.PublishOrderItemAdded(ctx, order, item)
	})

	s.logger.InfoContext(ctx, "order item added",
		slog.String("order_id", order.ID),
		slog.String("item_id", item.ID),
		slog.String("order_total", order.Total.String()),
		slog.Int("order_quantity", order.Quantity),
	)

	return item.ID, nil
}

// DeleteOrderItem removes item and stores the order's new totals in one
// transaction. On success item keeps its identity with zeroed totals and
// quantity, and order holds the committed totals. An item that belongs to
// another order is rejected with a conflict and nothing is changed.
func (s *OrderService) DeleteOrderItem(ctx context.Context, order *domain.Order, item *domain.OrderItem) error {
	if item.OrderID != order.ID {
		return mismatchedItem(order, item)
	}

	start := time.Now()

	removed := *item
	removed.Zero()

	var updated *domain.Order
	err := repository.RunInTx(ctx, s.uow, func(tx repository.Tx) error {
		locked, err := tx.Orders().Lock(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		if err := tx.OrderItems().Delete(ctx, order.ID, removed.ID); err != nil {
			return fmt.Errorf("delete order item: %w", err)
		}

		// The row is gone, so the sum covers the remaining items only. The
		// zeroed item adds nothing.
		siblings, err := tx.OrderItems().Sum(ctx, repository.OrderItemFilter{OrderID: order.ID})
		if err != nil {
			return fmt.Errorf("sum order items: %w", err)
		}

		locked.ApplyTotals(domain.CalculateTotals(siblings, removed))
		locked.UpdatedAt = s.nextStamp(locked.UpdatedAt)
		if err := tx.Orders().UpdateTotals(ctx, locked); err != nil {
			return fmt.Errorf("update order totals: %w", err)
		}

		updated = locked
		return nil
	})
	observeRecalculation(opDeleteItem, start, err)
	if err != nil {
		s.logFailure(ctx, opDeleteItem, order.ID, removed.ID, err)
		return err
	}

	*item = removed
	*order = *updated

	s.afterCommit(ctx, order.ID, order.UpdatedAt, "order_item.deleted", func(p EventPublisher) error {
		return p.PublishOrderItemDeleted(ctx, order, item)
	})

	s.logger.InfoContext(ctx, "order item deleted",
		slog.String("order_id", order.ID),
		slog.String("item_id", item.ID),
		slog.String("order_total", order.Total.String()),
		slog.Int("order_quantity", order.Quantity),
	)

	return nil
}

// UpdateOrderItem re-prices item, stores it and stores the order's new totals
// in one transaction. The previous values of the item never enter the sum:
// its siblings are read with the item excluded and its new values added.
//
// The editable fields of item are applied to the stored row, which is read
// under the order lock. An item that belongs to another order is rejected
// with a conflict and nothing is changed.
func (s *OrderService) UpdateOrderItem(ctx context.Context, order *domain.Order, item *domain.OrderItem) (*domain.OrderItem, error) {
	if item.OrderID != order.ID {
		return nil, mismatchedItem(order, item)
	}

	updated, changed, err := s.updateItem(ctx, order.ID, item.ID, func(stored *domain.OrderItem) {
		stored.ProductName = item.ProductName
		stored.LicenseCode = item.LicenseCode
		stored.UnitPrice = item.UnitPrice
		stored.Quantity = item.Quantity
	})
	if err != nil {
		return nil, err
	}

	*item = *changed
	*order = *updated
	return item, nil
}

// updateItem locks the order, reads the item, applies edit to it and stores
// the item and the order's new totals. Reading the item under the lock keeps
// concurrent edits of different fields from overwriting each other.
func (s *OrderService) updateItem(
	ctx context.Context,
	orderID, itemID string,
	edit func(*domain.OrderItem),
) (*domain.Order, *domain.OrderItem, error) {
	start := time.Now()

	var (
		updated *domain.Order
		changed *domain.OrderItem
	)
	err := repository.RunInTx(ctx, s.uow, func(tx repository.Tx) error {
		locked, err := tx.Orders().Lock(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		stored, err := tx.OrderItems().GetByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("get order item: %w", err)
		}
		if stored.OrderID != orderID {
			return apperrors.NotFound("order item", itemID)
		}
		edit(stored)

		now := s.nextStamp(locked.UpdatedAt)
		stored.UpdatedAt = now
		stored.Recalculate(locked.ExchangeRate)

		if err := tx.OrderItems().Update(ctx, stored); err != nil {
			return fmt.Errorf("update order item: %w", err)
		}

		siblings, err := tx.OrderItems().Sum(ctx, repository.OrderItemFilter{
			OrderID:   orderID,
			ExcludeID: &stored.ID,
		})
		if err != nil {
			return fmt.Errorf("sum order items: %w", err)
		}

		locked.ApplyTotals(domain.CalculateTotals(siblings, *stored))
		locked.UpdatedAt = now
		if err := tx.Orders().UpdateTotals(ctx, locked); err != nil {
			return fmt.Errorf("update order totals: %w", err)
		}

		updated, changed = locked, stored
		return nil
	})
	observeRecalculation(opUpdateItem, start, err)
	if err != nil {
		s.logFailure(ctx, opUpdateItem, orderID, itemID, err)
		return nil, nil, err
	}

	s.afterCommit(ctx, orderID, updated.UpdatedAt, "order_item.updated", func(p EventPublisher) error {
		return p.PublishOrderItemUpdated(ctx, updated, changed)
	})

	s.logger.InfoContext(ctx, "order item updated",
		slog.String("order_id", orderID),
		slog.String("item_id", itemID),
		slog.String("order_total", updated.Total.String()),
		slog.Int("order_quantity", updated.Quantity),
	)

	return updated, changed, nil
}

func mismatchedItem(order *domain.Order, item *domain.OrderItem) error {
	return apperrors.Conflict(fmt.Sprintf("order item %s belongs to order %s, not %s", item.ID, item.OrderID, order.ID))
}

func (s *OrderService) logFailure(ctx context.Context, op, orderID, itemID string, err error) {
	level := slog.LevelError
	if isContextError(err) || apperrors.HTTPStatus(err) < 500 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "order recalculation failed",
		slog.String("operation", op),
		slog.String("order_id", orderID),
		slog.String("item_id", itemID),
		slog.String("error", err.Error()),
	)
}

// ---------------------------------------------------------------------------
// Item workflow used by the HTTP layer
// ---------------------------------------------------------------------------

// AddItemInput holds the parameters for a new order item.
type AddItemInput struct {
	ProductName string
	LicenseCode string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// UpdateItemInput is a partial update; nil fields are kept.
type UpdateItemInput struct {
	ProductName *string
	LicenseCode *string
	UnitPrice   *decimal.Decimal
	Quantity    *int
}

// AddItem adds a new item to the order with the given id and returns the
// committed order and item.
func (s *OrderService) AddItem(ctx context.Context, orderID string, input AddItemInput) (*domain.Order, *domain.OrderItem, error) {
	if strings.TrimSpace(input.ProductName) == "" {
		return nil, nil, apperrors.InvalidInput("product_name is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("get order for new item: %w", err)
	}

	item := &domain.OrderItem{
		ProductName: strings.TrimSpace(input.ProductName),
		LicenseCode: strings.TrimSpace(input.LicenseCode),
		UnitPrice:   input.UnitPrice,
		Quantity:    input.Quantity,
	}
	if _, err := s.AddOrderItem(ctx, order, item); err != nil {
		return nil, nil, fmt.Errorf("add order item: %w", err)
	}
	return order, item, nil
}

// UpdateItem applies input to an item of the order and recalculates. The
// patch is applied to the row read under the order lock, so concurrent
// patches of different fields are all kept.
func (s *OrderService) UpdateItem(ctx context.Context, orderID, itemID string, input UpdateItemInput) (*domain.Order, *domain.OrderItem, error) {
	var name string
	if input.ProductName != nil {
		name = strings.TrimSpace(*input.ProductName)
		if name == "" {
			return nil, nil, apperrors.InvalidInput("product_name must not be empty")
		}
	}

	order, item, err := s.updateItem(ctx, orderID, itemID, func(stored *domain.OrderItem) {
		if input.ProductName != nil {
			stored.ProductName = name
		}
		if input.LicenseCode != nil {
			stored.LicenseCode = strings.TrimSpace(*input.LicenseCode)
		}
		if input.UnitPrice != nil {
			stored.UnitPrice = *input.UnitPrice
		}
		if input.Quantity != nil {
			stored.Quantity = *input.Quantity
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("update order item: %w", err)
	}
	return order, item, nil
}

// RemoveItem deletes an item of the order and returns the order's committed
// state.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID string) (*domain.Order, error) {
	order, item, err := s.loadItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.DeleteOrderItem(ctx, order, item); err != nil {
		return nil, fmt.Errorf("delete order item: %w", err)
	}
	return order, nil
}

// GetItem returns an item of the order.
func (s *OrderService) GetItem(ctx context.Context, orderID, itemID string) (*domain.OrderItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if item.OrderID != orderID {
		return nil, apperrors.NotFound("order item", itemID)
	}
	return item, nil
}

// ListItems returns all items of the order, oldest first.
func (s *OrderService) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, fmt.Errorf("get order for items: %w", err)
	}

	items, err := s.items.List(ctx, repository.OrderItemFilter{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// loadItem reads the order and one of its items. An item of another order
// is reported as not found.
func (s *OrderService) loadItem(ctx context.Context, orderID, itemID string) (*domain.Order, *domain.OrderItem, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("get order: %w", err)
	}

	item, err := s.GetItem(ctx, orderID, itemID)
	if err != nil {
		return nil, nil, err
	}
	return order, item, nil
}
