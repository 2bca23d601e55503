// Package domain defines the payment reconciliation entities: local payment records,
// the orders they settle and the provider's view of a payment.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LocalStatus is the status of a payment as tracked by this service.
type LocalStatus string

const (
	StatusPending   LocalStatus = "pending"
	StatusApproved  LocalStatus = "approved"
	StatusRejected  LocalStatus = "rejected"
	StatusCancelled LocalStatus = "cancelled"
	StatusRefunded  LocalStatus = "refunded"
)

// IsTerminal reports whether the status can no longer change.
func (s LocalStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// IsValid reports whether s is one of the known statuses.
func (s LocalStatus) IsValid() bool {
	return s == StatusPending || s.IsTerminal()
}

// ProviderName identifies the external payment provider in stored records.
const ProviderName = "mercadopago"

// Payment is the local record of a payment attempt for an order.
//
// ProviderReference stays nil until the first successful provider fetch. PreferenceID
// holds the checkout identifier created before the customer paid. At most one
// non-retired record exists per order and provider.
type Payment struct {
	ID                   uuid.UUID
	OrderID              int64
	Provider             string
	PreferenceID         *string
	ProviderReference    *string
	Status               LocalStatus
	Amount               string
	Currency             string
	LastProviderResponse json.RawMessage
	CreatedAt            time.Time
	UpdatedAt            time.Time
	RetiredAt            *time.Time
}

// IsActive reports whether the record has not been retired.
func (p *Payment) IsActive() bool {
	return p.RetiredAt == nil
}

// ApplyProviderPayment copies the provider's view into the record and sets the new status.
func (p *Payment) ApplyProviderPayment(pp *ProviderPayment, status LocalStatus) {
	ref := pp.ID
	p.ProviderReference = &ref
	p.Status = status
	if pp.Amount != "" {
		p.Amount = pp.Amount
	}
	if pp.Currency != "" {
		p.Currency = pp.Currency
	}
	if len(pp.Raw) > 0 {
		p.LastProviderResponse = pp.Raw
	}
}
