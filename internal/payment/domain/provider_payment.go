package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ProviderPayment is the authoritative payment state returned by the provider.
type ProviderPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	Amount            string
	Currency          string
	ExternalReference string
	PaymentMethodID   string
	Installments      int
	DateCreated       *time.Time
	DateLastUpdated   *time.Time
	Raw               json.RawMessage
}

// OrderIDFromExternalReference parses the order id the checkout stored in
// external_reference. It returns false when the reference is absent or not numeric.
func (p *ProviderPayment) OrderIDFromExternalReference() (int64, bool) {
	ref := strings.TrimSpace(p.ExternalReference)
	if ref == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
