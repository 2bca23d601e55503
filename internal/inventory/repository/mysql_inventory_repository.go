package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
)

// MySQLInventoryRepository deducts stock in MySQL.
type MySQLInventoryRepository struct {
	db *sql.DB
}

// DeductForOrder decrements stock for every item of the order once. See
// PostgreSQLInventoryRepository.DeductForOrder.
func (m *MySQLInventoryRepository) DeductForOrder(ctx context.Context, orderID int64) error {
	querier := database.GetTx(ctx, m.db)

	claim := `INSERT IGNORE INTO inventory_deductions (order_id, created_at) VALUES (?, NOW(6))`

	result, err := querier.ExecContext(ctx, claim, orderID)
	if err != nil {
		return apperrors.Wrap(err, "failed to record inventory deduction")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return nil
	}

	deduct := `UPDATE stocks AS s
			   JOIN (
			       SELECT product_id, SUM(quantity) AS quantity
			       FROM order_items
			       WHERE order_id = ?
			       GROUP BY product_id
			   ) AS oi ON s.product_id = oi.product_id
			   SET s.quantity = GREATEST(s.quantity - oi.quantity, 0), s.updated_at = NOW(6)`

	if _, err := querier.ExecContext(ctx, deduct, orderID); err != nil {
		return apperrors.Wrap(err, "failed to deduct stock")
	}

	return nil
}

// NewMySQLInventoryRepository creates a new MySQL inventory repository instance.
func NewMySQLInventoryRepository(db *sql.DB) *MySQLInventoryRepository {
	return &MySQLInventoryRepository{db: db}
}
