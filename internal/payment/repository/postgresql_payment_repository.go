// Package repository provides PostgreSQL and MySQL persistence for payments and orders.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

const postgresPaymentColumns = `id, order_id, provider, preference_id, provider_reference, status,
			  amount, currency, last_provider_response, created_at, updated_at, retired_at`

// PostgreSQLPaymentRepository implements payment persistence for PostgreSQL databases.
type PostgreSQLPaymentRepository struct {
	db *sql.DB
}

// Create inserts a new payment record.
func (p *PostgreSQLPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO payments (id, order_id, provider, preference_id, provider_reference, status,
			  amount, currency, last_provider_response, created_at, updated_at, retired_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := querier.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.OrderID,
		payment.Provider,
		payment.PreferenceID,
		payment.ProviderReference,
		payment.Status,
		amountOrZero(payment.Amount),
		payment.Currency,
		nullableJSON(payment.LastProviderResponse),
		payment.CreatedAt,
		payment.UpdatedAt,
		payment.RetiredAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "payment already exists")
		}
		return apperrors.Wrap(err, "failed to create payment")
	}

	return nil
}

// Update persists the mutable fields of a payment record.
func (p *PostgreSQLPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE payments
			  SET provider_reference = $1, status = $2, amount = $3, currency = $4,
			      last_provider_response = $5, updated_at = NOW(), retired_at = $6
			  WHERE id = $7`

	result, err := querier.ExecContext(
		ctx,
		query,
		payment.ProviderReference,
		payment.Status,
		amountOrZero(payment.Amount),
		payment.Currency,
		nullableJSON(payment.LastProviderResponse),
		payment.RetiredAt,
		payment.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "provider reference already bound to another payment")
		}
		return apperrors.Wrap(err, "failed to update payment")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

// GetByProviderReference returns the record bound to the provider's payment id.
func (p *PostgreSQLPaymentRepository) GetByProviderReference(
	ctx context.Context,
	reference string,
) (*domain.Payment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresPaymentColumns + `
			  FROM payments
			  WHERE provider = $1 AND provider_reference = $2
			  ORDER BY created_at DESC
			  LIMIT 1`

	payment, err := scanPayment(querier.QueryRowContext(ctx, query, domain.ProviderName, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment by provider reference")
	}

	return payment, nil
}

// GetActiveByOrderID returns the newest non-retired record of an order.
func (p *PostgreSQLPaymentRepository) GetActiveByOrderID(
	ctx context.Context,
	orderID int64,
) (*domain.Payment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresPaymentColumns + `
			  FROM payments
			  WHERE order_id = $1 AND provider = $2 AND retired_at IS NULL
			  ORDER BY created_at DESC
			  LIMIT 1`

	payment, err := scanPayment(querier.QueryRowContext(ctx, query, orderID, domain.ProviderName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get active payment")
	}

	return payment, nil
}

// ListActiveByOrderID returns every non-retired record of an order, newest first.
func (p *PostgreSQLPaymentRepository) ListActiveByOrderID(
	ctx context.Context,
	orderID int64,
) ([]*domain.Payment, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + postgresPaymentColumns + `
			  FROM payments
			  WHERE order_id = $1 AND provider = $2 AND retired_at IS NULL
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, orderID, domain.ProviderName)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list active payments")
	}
	defer func() {
		_ = rows.Close()
	}()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan payment")
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate payments")
	}

	return payments, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var raw []byte

	err := row.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Provider,
		&payment.PreferenceID,
		&payment.ProviderReference,
		&payment.Status,
		&payment.Amount,
		&payment.Currency,
		&raw,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&payment.RetiredAt,
	)
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 {
		payment.LastProviderResponse = raw
	}

	return &payment, nil
}

// NewPostgreSQLPaymentRepository creates a new PostgreSQL payment repository instance.
func NewPostgreSQLPaymentRepository(db *sql.DB) *PostgreSQLPaymentRepository {
	return &PostgreSQLPaymentRepository{db: db}
}
