package domain

import "time"

// OrderStatus is the lifecycle status of an order as far as payment is concerned.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPaymentFailed  OrderStatus = "payment_failed"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// Order is the subset of the order aggregate the reconciler reads and writes.
type Order struct {
	ID        int64
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderStatusFor returns the order status implied by a terminal payment status.
// The second value is false when the payment status does not move the order.
func OrderStatusFor(status LocalStatus) (OrderStatus, bool) {
	switch status {
	case StatusApproved:
		return OrderStatusPaid, true
	case StatusRejected, StatusCancelled:
		return OrderStatusPaymentFailed, true
	case StatusRefunded:
		return OrderStatusRefunded, true
	default:
		return "", false
	}
}
