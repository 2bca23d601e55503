package domain

import "time"

// EventTypePaymentStatusChanged is the outbox event type emitted on every transition.
const EventTypePaymentStatusChanged = "payment.status_changed"

// StatusChangedEvent is the outbox payload for a payment transition.
type StatusChangedEvent struct {
	PaymentID         string      `json:"payment_id"`
	OrderID           int64       `json:"order_id"`
	ProviderReference string      `json:"provider_reference"`
	PreviousStatus    LocalStatus `json:"previous_status"`
	Status            LocalStatus `json:"status"`
	OrderStatus       OrderStatus `json:"order_status,omitempty"`
	Amount            string      `json:"amount,omitempty"`
	Currency          string      `json:"currency,omitempty"`
	OccurredAt        time.Time   `json:"occurred_at"`
}
