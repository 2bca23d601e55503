package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

const mysqlPaymentColumns = `id, order_id, provider, preference_id, provider_reference, status,
			  amount, currency, last_provider_response, created_at, updated_at, retired_at`

// MySQLPaymentRepository implements payment persistence for MySQL databases.
// Payment ids are stored as BINARY(16).
type MySQLPaymentRepository struct {
	db *sql.DB
}

// Create inserts a new payment record.
func (m *MySQLPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO payments (id, order_id, provider, preference_id, provider_reference, status,
			  amount, currency, last_provider_response, created_at, updated_at, retired_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := payment.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal payment id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE payments
			  SET provider_reference = ?, status = ?, amount = ?, currency = ?,
			      last_provider_response = ?, updated_at = NOW(6), retired_at = ?
			  WHERE id = ?`

	id, err := payment.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal payment id")
	}

	result, err := querier.ExecContext(
		ctx,
		query,
		payment.ProviderReference,
		payment.Status,
		amountOrZero(payment.Amount),
		payment.Currency,
		nullableJSON(payment.LastProviderResponse),
		payment.RetiredAt,
		id,
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
func (m *MySQLPaymentRepository) GetByProviderReference(
	ctx context.Context,
	reference string,
) (*domain.Payment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlPaymentColumns + `
			  FROM payments
			  WHERE provider = ? AND provider_reference = ?
			  ORDER BY created_at DESC
			  LIMIT 1`

	payment, err := scanMySQLPayment(querier.QueryRowContext(ctx, query, domain.ProviderName, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get payment by provider reference")
	}

	return payment, nil
}

// GetActiveByOrderID returns the newest non-retired record of an order.
func (m *MySQLPaymentRepository) GetActiveByOrderID(
	ctx context.Context,
	orderID int64,
) (*domain.Payment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlPaymentColumns + `
			  FROM payments
			  WHERE order_id = ? AND provider = ? AND retired_at IS NULL
			  ORDER BY created_at DESC
			  LIMIT 1`

	payment, err := scanMySQLPayment(querier.QueryRowContext(ctx, query, orderID, domain.ProviderName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get active payment")
	}

	return payment, nil
}

// ListActiveByOrderID returns every non-retired record of an order, newest first.
func (m *MySQLPaymentRepository) ListActiveByOrderID(
	ctx context.Context,
	orderID int64,
) ([]*domain.Payment, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlPaymentColumns + `
			  FROM payments
			  WHERE order_id = ? AND provider = ? AND retired_at IS NULL
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
		payment, err := scanMySQLPayment(rows)
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

func scanMySQLPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var id, raw []byte

	err := row.Scan(
		&id,
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

	if err := payment.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal payment id")
	}
	if len(raw) > 0 {
		payment.LastProviderResponse = raw
	}

	return &payment, nil
}

// NewMySQLPaymentRepository creates a new MySQL payment repository instance.
func NewMySQLPaymentRepository(db *sql.DB) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{db: db}
}
