// Package validation provides custom validation rules for request DTOs.
package validation

import (
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Digits validates that a string holds only ASCII digits. Empty values are left to
// validation.Required.
var Digits = validation.NewStringRuleWithError(
	isDigits,
	validation.NewError("validation_digits", "must contain only digits"),
)
