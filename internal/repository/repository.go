package repository

import (
	"context"
	"fmt"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	Currency *string
	Page     int
	PerPage  int
}

// OrderItemFilter selects the items of one order. When ExcludeID is set the
// item with that id is left out, which is how the sibling set of an item
// under update is read.
type OrderItemFilter struct {
	OrderID   string
	ExcludeID *string
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// Lock reads the order and holds a row lock on it until the surrounding
	// transaction ends.
	Lock(ctx context.Context, id string) (*domain.Order, error)

	// UpdateTotals writes the aggregate columns and updated_at.
	UpdateTotals(ctx context.Context, order *domain.Order) error

	// Update writes the mutable header fields (ref_no, exchange_rate).
	Update(ctx context.Context, order *domain.Order) error

	// Delete removes the order; its items go with it.
	Delete(ctx context.Context, id string) error
}

// OrderItemRepository defines the interface for order item persistence.
// Update and Delete only touch a row of the given order; a row of another
// order is reported as not found.
type OrderItemRepository interface {
	Create(ctx context.Context, item *domain.OrderItem) error
	Update(ctx context.Context, item *domain.OrderItem) error
	Delete(ctx context.Context, orderID, id string) error
	GetByID(ctx context.Context, id string) (*domain.OrderItem, error)
	List(ctx context.Context, filter OrderItemFilter) ([]domain.OrderItem, error)

	// Sum aggregates the items selected by filter in the store.
	Sum(ctx context.Context, filter OrderItemFilter) (domain.Totals, error)
}

// Tx is one open unit of work. Repositories it hands out run inside it.
type Tx interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWork opens transactions.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

// RunInTx runs fn inside a new transaction and commits when fn returns nil.
// The transaction is rolled back on every other exit path, panics included.
func RunInTx(ctx context.Context, uow UnitOfWork, fn func(tx Tx) error) error {
	tx, err := uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
