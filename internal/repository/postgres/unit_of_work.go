package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	"github.com/WASandaruwan/onlinesales-backend/pkg/database"
)

// UnitOfWork opens pgx transactions at a fixed isolation level.
type UnitOfWork struct {
	db       database.DBTX
	isoLevel pgx.TxIsoLevel
}

// NewUnitOfWork returns a UnitOfWork on db. An empty isoLevel means read
// committed.
func NewUnitOfWork(db database.DBTX, isoLevel pgx.TxIsoLevel) *UnitOfWork {
	if isoLevel == "" {
		isoLevel = pgx.ReadCommitted
	}
	return &UnitOfWork{db: db, isoLevel: isoLevel}
}

// Begin starts a transaction.
func (u *UnitOfWork) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := u.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: u.isoLevel})
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", u.isoLevel, err)
	}
	return &unitTx{
		tx:     tx,
		orders: NewOrderRepository(tx),
		items:  NewOrderItemRepository(tx),
	}, nil
}

type unitTx struct {
	tx     pgx.Tx
	orders *OrderRepository
	items  *OrderItemRepository
}

func (t *unitTx) Orders() repository.OrderRepository         { return t.orders }
func (t *unitTx) OrderItems() repository.OrderItemRepository { return t.items }

func (t *unitTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *unitTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

var (
	_ repository.UnitOfWork          = (*UnitOfWork)(nil)
	_ repository.OrderRepository     = (*OrderRepository)(nil)
	_ repository.OrderItemRepository = (*OrderItemRepository)(nil)
)
