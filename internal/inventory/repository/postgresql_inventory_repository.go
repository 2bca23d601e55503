// Package repository implements the inventory collaborator: stock deduction for paid
// orders, recorded once per order.
package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
)

// PostgreSQLInventoryRepository deducts stock in PostgreSQL.
type PostgreSQLInventoryRepository struct {
	db *sql.DB
}

// DeductForOrder decrements stock for every item of the order. A second call for the same
// order is a no-op. Stock never drops below zero so an approved payment is never rolled
// back by a shortage.
//
// It joins the caller's transaction, so the deduction commits or rolls back together
// with the payment transition.
func (p *PostgreSQLInventoryRepository) DeductForOrder(ctx context.Context, orderID int64) error {
	querier := database.GetTx(ctx, p.db)

	// ON CONFLICT keeps the transaction usable; a failed insert would abort it.
	claim := `INSERT INTO inventory_deductions (order_id, created_at)
			  VALUES ($1, NOW())
			  ON CONFLICT (order_id) DO NOTHING`

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
			   SET quantity = GREATEST(s.quantity - oi.quantity, 0), updated_at = NOW()
			   FROM (
			       SELECT product_id, SUM(quantity) AS quantity
			       FROM order_items
			       WHERE order_id = $1
			       GROUP BY product_id
			   ) AS oi
			   WHERE s.product_id = oi.product_id`

	if _, err := querier.ExecContext(ctx, deduct, orderID); err != nil {
		return apperrors.Wrap(err, "failed to deduct stock")
	}

	return nil
}

// NewPostgreSQLInventoryRepository creates a new PostgreSQL inventory repository instance.
func NewPostgreSQLInventoryRepository(db *sql.DB) *PostgreSQLInventoryRepository {
	return &PostgreSQLInventoryRepository{db: db}
}
