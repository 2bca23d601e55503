package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

// MySQLOrderRepository reads and updates order payment status in MySQL.
type MySQLOrderRepository struct {
	db *sql.DB
}

// Get returns an order without locking it.
func (m *MySQLOrderRepository) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT id, status, created_at, updated_at FROM orders WHERE id = ?`
	return m.get(ctx, query, orderID)
}

// GetForUpdate returns an order and holds a row lock until the surrounding transaction ends.
func (m *MySQLOrderRepository) GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT id, status, created_at, updated_at FROM orders WHERE id = ? FOR UPDATE`
	return m.get(ctx, query, orderID)
}

func (m *MySQLOrderRepository) get(ctx context.Context, query string, orderID int64) (*domain.Order, error) {
	querier := database.GetTx(ctx, m.db)

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
func (m *MySQLOrderRepository) UpdateStatus(
	ctx context.Context,
	orderID int64,
	status domain.OrderStatus,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE orders SET status = ?, updated_at = NOW(6) WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, status, orderID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update order status")
	}

	// updated_at always changes, so zero affected rows means the order is missing.
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// NewMySQLOrderRepository creates a new MySQL order repository instance.
func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}
