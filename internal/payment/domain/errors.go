package domain

import (
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
)

// Payment reconciliation errors.
var (
	// ErrAuthenticityFailure indicates a webhook failed signature, source or rate checks.
	ErrAuthenticityFailure = apperrors.Wrap(apperrors.ErrUnauthorized, "webhook authenticity check failed")

	// ErrMalformedPayload indicates the webhook body matched no known notification shape.
	ErrMalformedPayload = apperrors.Wrap(apperrors.ErrInvalidInput, "unrecognized notification payload")

	// ErrProviderUnavailable indicates the provider could not be reached or answered badly.
	// It is retryable.
	ErrProviderUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "payment provider unavailable")

	// ErrPaymentNotFound indicates no local payment record could be resolved.
	ErrPaymentNotFound = apperrors.Wrap(apperrors.ErrNotFound, "payment not found")

	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = apperrors.Wrap(apperrors.ErrNotFound, "order not found")

	// ErrNotActionable indicates the identifier cannot be resolved to a provider payment.
	ErrNotActionable = apperrors.Wrap(apperrors.ErrInvalidInput, "identifier is not actionable")

	// ErrDispatchUnavailable indicates the reconciliation queue cannot accept work.
	ErrDispatchUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "reconciliation queue unavailable")
)
