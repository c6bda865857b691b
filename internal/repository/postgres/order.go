package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	"github.com/WASandaruwan/onlinesales-backend/pkg/database"
	apperrors "github.com/WASandaruwan/onlinesales-backend/pkg/errors"
)

const orderColumns = `id, ref_no, currency, exchange_rate, currency_total, total, quantity, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.Querier
}

// NewOrderRepository creates a new PostgreSQL-backed order repository. db is
// either the pool or an open transaction.
func NewOrderRepository(db database.Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	query := `
		INSERT INTO orders (id, ref_no, currency, exchange_rate, currency_total, total, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		o.ID,
		o.RefNo,
		o.Currency,
		o.ExchangeRate,
		o.CurrencyTotal,
		o.Total,
		o.Quantity,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, "GetOrder", query, id)
}

// Lock retrieves an order with SELECT ... FOR UPDATE. Other writers of the
// same order wait until the surrounding transaction ends.
func (r *OrderRepository) Lock(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "LockOrder", query, id)
}

func (r *OrderRepository) getOne(ctx context.Context, op, query, id string) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) (_ []domain.Order, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Currency != nil {
		conditions = append(conditions, fmt.Sprintf("currency = $%d", argIndex))
		args = append(args, *filter.Currency)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the unpaged total with every row.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.RefNo,
			&o.Currency,
			&o.ExchangeRate,
			&o.CurrencyTotal,
			&o.Total,
			&o.Quantity,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// UpdateTotals writes the aggregate columns of o.
func (r *OrderRepository) UpdateTotals(ctx context.Context, o *domain.Order) (err error) {
	query := `
		UPDATE orders
		SET currency_total = $1, total = $2, quantity = $3, updated_at = $4
		WHERE id = $5`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderTotals", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, o.CurrencyTotal, o.Total, o.Quantity, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.ID)
	}
	return nil
}

// Update writes the order header.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) (err error) {
	query := `
		UPDATE orders
		SET ref_no = $1, exchange_rate = $2, updated_at = $3
		WHERE id = $4`

	ctx, end := database.TraceQuery(ctx, "UpdateOrder", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, o.RefNo, o.ExchangeRate, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", o.ID)
	}
	return nil
}

// Delete removes an order. order_items rows cascade.
func (r *OrderRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM orders WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteOrder", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(
		&o.ID,
		&o.RefNo,
		&o.Currency,
		&o.ExchangeRate,
		&o.CurrencyTotal,
		&o.Total,
		&o.Quantity,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}
