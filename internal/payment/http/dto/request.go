// Package dto provides data transfer objects for the payment HTTP endpoints.
package dto

import (
	"strconv"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/payment-reconciler/internal/validation"
)

// OrderPathParams holds the order id taken from the request path.
type OrderPathParams struct {
	OrderID string
}

// Validate checks that the order id is a positive integer.
func (p *OrderPathParams) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.OrderID,
			validation.Required,
			customValidation.Digits,
			validation.Length(1, 19),
			validation.By(positiveID),
		),
	)
}

// ID returns the parsed order id. Call Validate first.
func (p *OrderPathParams) ID() int64 {
	id, _ := strconv.ParseInt(p.OrderID, 10, 64)
	return id
}

func positiveID(value interface{}) error {
	s, _ := value.(string)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return validation.NewError("validation_positive_id", "must be a positive integer")
	}
	return nil
}
