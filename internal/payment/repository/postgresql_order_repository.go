package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

// PostgreSQLOrderRepository reads and updates order payment status in PostgreSQL.
type PostgreSQLOrderRepository struct {
	db *sql.DB
}

// Get returns an order without locking it.
func (p *PostgreSQLOrderRepository) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT id, status, created_at, updated_at FROM orders WHERE id = $1`
	return p.get(ctx, query, orderID)
}

// GetForUpdate returns an order and holds a row lock until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (p *PostgreSQLOrderRepository) GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT id, status, created_at, updated_at FROM orders WHERE id = $1 FOR UPDATE`
	return p.get(ctx, query, orderID)
}

func (p *PostgreSQLOrderRepository) get(ctx context.Context, query string, orderID int64) (*domain.Order, error) {
	querier := database.GetTx(ctx, p.db)

	var order domain.Order
	err := querier.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order")
	}

	return &order, nil
}

// UpdateStatus sets the payment-driven status of an order.
func (p *PostgreSQLOrderRepository) UpdateStatus(
	ctx context.Context,
	orderID int64,
	status domain.OrderStatus,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, status, orderID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// NewPostgreSQLOrderRepository creates a new PostgreSQL order repository instance.
func NewPostgreSQLOrderRepository(db *sql.DB) *PostgreSQLOrderRepository {
	return &PostgreSQLOrderRepository{db: db}
}
