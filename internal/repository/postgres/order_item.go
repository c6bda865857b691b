package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	"github.com/WASandaruwan/onlinesales-backend/pkg/database"
	apperrors "github.com/WASandaruwan/onlinesales-backend/pkg/errors"
)

const orderItemColumns = `id, order_id, product_name, license_code, unit_price, quantity, currency_total, total, created_at, updated_at`

// OrderItemRepository implements repository.OrderItemRepository using PostgreSQL.
type OrderItemRepository struct {
	db database.Querier
}

// NewOrderItemRepository creates a new PostgreSQL-backed order item repository.
func NewOrderItemRepository(db database.Querier) *OrderItemRepository {
	return &OrderItemRepository{db: db}
}

// Create inserts a new order item.
func (r *OrderItemRepository) Create(ctx context.Context, item *domain.OrderItem) (err error) {
	query := `
		INSERT INTO order_items (id, order_id, product_name, license_code, unit_price, quantity, currency_total, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "CreateOrderItem", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		item.ID,
		item.OrderID,
		item.ProductName,
		item.LicenseCode,
		item.UnitPrice,
		item.Quantity,
		item.CurrencyTotal,
		item.Total,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// Update writes every mutable column of item, scoped to item.OrderID.
func (r *OrderItemRepository) Update(ctx context.Context, item *domain.OrderItem) (err error) {
	query := `
		UPDATE order_items
		SET product_name = $1, license_code = $2, unit_price = $3, quantity = $4,
			currency_total = $5, total = $6, updated_at = $7
		WHERE id = $8 AND order_id = $9`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderItem", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		item.ProductName,
		item.LicenseCode,
		item.UnitPrice,
		item.Quantity,
		item.CurrencyTotal,
		item.Total,
		item.UpdatedAt,
		item.ID,
		item.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update order item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order item", item.ID)
	}
	return nil
}

// Delete removes an item of the given order.
func (r *OrderItemRepository) Delete(ctx context.Context, orderID, id string) (err error) {
	query := `DELETE FROM order_items WHERE id = $1 AND order_id = $2`

	ctx, end := database.TraceQuery(ctx, "DeleteOrderItem", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, orderID)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order item", id)
	}
	return nil
}

// GetByID retrieves an order item by its ID.
func (r *OrderItemRepository) GetByID(ctx context.Context, id string) (_ *domain.OrderItem, err error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetOrderItem", query)
	defer func() { end(err) }()

	item, err := scanOrderItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order item", id)
		}
		return nil, fmt.Errorf("scan order item: %w", err)
	}
	return item, nil
}

// List returns the items selected by filter, oldest first.
func (r *OrderItemRepository) List(ctx context.Context, filter repository.OrderItemFilter) (_ []domain.OrderItem, err error) {
	where, args := itemFilterClause(filter)
	query := `SELECT ` + orderItemColumns + ` FROM order_items ` + where + ` ORDER BY created_at, id`

	ctx, end := database.TraceQuery(ctx, "ListOrderItems", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return items, nil
}

// Sum aggregates the items selected by filter. An empty selection sums to
// zero.
func (r *OrderItemRepository) Sum(ctx context.Context, filter repository.OrderItemFilter) (_ domain.Totals, err error) {
	where, args := itemFilterClause(filter)
	query := `
		SELECT COALESCE(SUM(currency_total), 0), COALESCE(SUM(total), 0), COALESCE(SUM(quantity), 0)
		FROM order_items ` + where

	ctx, end := database.TraceQuery(ctx, "SumOrderItems", query)
	defer func() { end(err) }()

	var (
		currencyTotal, total decimal.Decimal
		quantity             int64
	)
	if err := r.db.QueryRow(ctx, query, args...).Scan(&currencyTotal, &total, &quantity); err != nil {
		return domain.Totals{}, fmt.Errorf("sum order items: %w", err)
	}

	return domain.Totals{
		CurrencyTotal: currencyTotal,
		Total:         total,
		Quantity:      int(quantity),
	}, nil
}

func itemFilterClause(filter repository.OrderItemFilter) (string, []any) {
	where := "WHERE order_id = $1"
	args := []any{filter.OrderID}
	if filter.ExcludeID != nil {
		where += " AND id <> $2"
		args = append(args, *filter.ExcludeID)
	}
	return where, args
}

func scanOrderItem(row pgx.Row) (*domain.OrderItem, error) {
	var item domain.OrderItem
	if err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductName,
		&item.LicenseCode,
		&item.UnitPrice,
		&item.Quantity,
		&item.CurrencyTotal,
		&item.Total,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
