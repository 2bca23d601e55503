// Package usecase implements payment reconciliation: the idempotency ledger, the polling
// backoff scheduler, the reconciler that drives local state from the provider's answer,
// and the webhook, polling and client-return entry points built on them.
package usecase

import (
	"context"
	"net/url"

	outboxDomain "github.com/allisson/payment-reconciler/internal/outbox/domain"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/service"
	"github.com/allisson/payment-reconciler/internal/worker"
)

// PaymentRepository defines payment record persistence.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	Update(ctx context.Context, payment *domain.Payment) error
	// GetByProviderReference returns the active record carrying ref.
	GetByProviderReference(ctx context.Context, ref string) (*domain.Payment, error)
	// GetActiveByOrderID returns the order's newest active record.
	GetActiveByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
	// ListActiveByOrderID returns active records for the order, newest first.
	ListActiveByOrderID(ctx context.Context, orderID int64) ([]*domain.Payment, error)
}

// OrderRepository defines the order operations the reconciler needs.
type OrderRepository interface {
	Get(ctx context.Context, orderID int64) (*domain.Order, error)
	// GetForUpdate reads the order and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
}

// OutboxEventRepository stores events in the same transaction as the state change.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// ProviderClient fetches the authoritative payment state.
type ProviderClient interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.ProviderPayment, error)
}

// InventoryService deducts stock for a paid order. It must be idempotent per order.
type InventoryService interface {
	DeductForOrder(ctx context.Context, orderID int64) error
}

// AuthenticityGate decides whether an inbound webhook may be processed.
type AuthenticityGate interface {
	Accept(ctx context.Context, req service.AuthRequest) error
}

// Dispatcher hands reconciliation work to background workers.
type Dispatcher interface {
	Submit(job worker.Job) error
}

// ReconcileUseCase reconciles a candidate provider payment id with local state.
type ReconcileUseCase interface {
	Reconcile(ctx context.Context, candidateID string) (*domain.ReconcileResult, error)
}

// WebhookUseCase accepts provider notifications.
type WebhookUseCase interface {
	Receive(ctx context.Context, event *InboundEvent) (*WebhookOutcome, error)
}

// PollingUseCase serves client-driven status checks.
type PollingUseCase interface {
	// Poll returns the order's payment status, reconciling with the provider when due.
	Poll(ctx context.Context, orderID int64) (*PollStatus, error)
	// ConfirmReturn reconciles the payment id the provider appended to the client return URL.
	ConfirmReturn(ctx context.Context, orderID int64, body []byte, query url.Values) (*PollStatus, error)
}
