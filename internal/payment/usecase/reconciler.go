package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	outboxDomain "github.com/allisson/payment-reconciler/internal/outbox/domain"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/service"
)

// reconcileUseCase implements ReconcileUseCase.
type reconcileUseCase struct {
	txManager   database.TxManager
	paymentRepo PaymentRepository
	orderRepo   OrderRepository
	outboxRepo  OutboxEventRepository
	provider    ProviderClient
	inventory   InventoryService
	normalizer  *service.Normalizer
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewReconcileUseCase creates the reconciler. timeout bounds a whole reconciliation,
// provider fetch included. Zero disables the bound.
func NewReconcileUseCase(
	txManager database.TxManager,
	paymentRepo PaymentRepository,
	orderRepo OrderRepository,
	outboxRepo OutboxEventRepository,
	provider ProviderClient,
	inventory InventoryService,
	normalizer *service.Normalizer,
	timeout time.Duration,
	logger *slog.Logger,
) ReconcileUseCase {
	return &reconcileUseCase{
		txManager:   txManager,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		provider:    provider,
		inventory:   inventory,
		normalizer:  normalizer,
		timeout:     timeout,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile fetches the provider's view of candidateID and drives the local payment and
// order towards it. Expected outcomes (not actionable, provider unavailable, no local
// record) are reported in the result; only infrastructure failures return an error.
//
// Record resolution and the state change run in one transaction holding the order's row
// lock, so concurrent reconciliations of the same order serialize and a transition with
// its side effects happens at most once.
func (r *reconcileUseCase) Reconcile(ctx context.Context, candidateID string) (*domain.ReconcileResult, error) {
	ctx, span := otel.Tracer("payment").Start(ctx, "payment.Reconcile")
	defer span.End()

	id, class := r.normalizer.NormalizeID(candidateID)
	span.SetAttributes(
		attribute.String("payment.candidate_id", id),
		attribute.String("payment.id_class", string(class)),
	)

	if !class.IsActionable() {
		r.logger.Info("candidate id not actionable",
			slog.String("candidate_id", candidateID),
			slog.String("class", string(class)),
		)
		return &domain.ReconcileResult{Reason: domain.ReasonNotActionable, PaymentID: id}, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	providerPayment, err := r.provider.GetPayment(ctx, id)
	if err != nil {
		if apperrors.Is(err, domain.ErrProviderUnavailable) {
			r.logger.Warn("provider unavailable",
				slog.String("payment_id", id),
				slog.Any("error", err),
			)
			span.SetAttributes(attribute.String("payment.reason", string(domain.ReasonProviderUnavailable)))
			return &domain.ReconcileResult{Reason: domain.ReasonProviderUnavailable, PaymentID: id}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider fetch failed")
		return nil, err
	}

	status := domain.MapProviderStatus(providerPayment.Status)

	var result *domain.ReconcileResult
	err = r.txManager.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		result, txErr = r.apply(txCtx, providerPayment, status)
		return txErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("payment.reason", string(result.Reason)),
		attribute.String("payment.status", string(result.Status)),
		attribute.Bool("payment.changed", result.Changed),
	)
	return result, nil
}

// apply runs inside the transaction.
func (r *reconcileUseCase) apply(
	ctx context.Context,
	pp *domain.ProviderPayment,
	status domain.LocalStatus,
) (*domain.ReconcileResult, error) {
	payment, backfilled, err := r.resolve(ctx, pp)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		r.logger.Warn("no local payment record for provider payment",
			slog.String("payment_id", pp.ID),
			slog.String("external_reference", pp.ExternalReference),
		)
		return &domain.ReconcileResult{Reason: domain.ReasonRecordNotFound, PaymentID: pp.ID}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &domain.ReconcileResult{
		OK:        true,
		Reason:    domain.ReasonOK,
		Status:    payment.Status,
		OrderID:   payment.OrderID,
		PaymentID: pp.ID,
	}

	previous := payment.Status
	if status == previous || previous.IsTerminal() {
		if previous.IsTerminal() && status != previous {
			r.logger.Warn("ignoring status change for terminal payment",
				slog.String("payment_id", pp.ID),
				slog.String("current_status", string(previous)),
				slog.String("provider_status", pp.Status),
			)
		}
		if backfilled {
			payment.ApplyProviderPayment(pp, previous)
			payment.UpdatedAt = r.now()
			if err := r.paymentRepo.Update(ctx, payment); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	payment.ApplyProviderPayment(pp, status)
	payment.UpdatedAt = r.now()
	if err := r.paymentRepo.Update(ctx, payment); err != nil {
		return nil, err
	}

	orderStatus, moves := domain.OrderStatusFor(status)
	if moves {
		if err := r.orderRepo.UpdateStatus(ctx, payment.OrderID, orderStatus); err != nil {
			return nil, err
		}
	}

	if status == domain.StatusApproved {
		if err := r.inventory.DeductForOrder(ctx, payment.OrderID); err != nil {
			return nil, apperrors.Wrap(err, "failed to deduct inventory")
		}
	}

	if err := r.recordEvent(ctx, payment, previous, orderStatus); err != nil {
		return nil, err
	}

	r.logger.Info("payment status changed",
		slog.String("payment_id", pp.ID),
		slog.Int64("order_id", payment.OrderID),
		slog.String("previous_status", string(previous)),
		slog.String("status", string(status)),
	)

	result.Status = status
	result.Changed = true
	return result, nil
}

// resolve finds the local record for pp and locks its order. The second return value
// reports whether the provider reference still has to be written to the record.
func (r *reconcileUseCase) resolve(
	ctx context.Context,
	pp *domain.ProviderPayment,
) (*domain.Payment, bool, error) {
	var orderID int64

	payment, err := r.paymentRepo.GetByProviderReference(ctx, pp.ID)
	switch {
	case err == nil:
		orderID = payment.OrderID
	case apperrors.Is(err, apperrors.ErrNotFound):
		id, ok := pp.OrderIDFromExternalReference()
		if !ok {
			return nil, false, domain.ErrPaymentNotFound
		}
		orderID = id
	default:
		return nil, false, err
	}

	if _, err := r.orderRepo.GetForUpdate(ctx, orderID); err != nil {
		return nil, false, err
	}

	// Re-read under the lock: a concurrent reconciliation may have changed or backfilled it.
	payment, err = r.paymentRepo.GetByProviderReference(ctx, pp.ID)
	if err == nil {
		return payment, false, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	payments, err := r.paymentRepo.ListActiveByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	var candidate *domain.Payment
	for _, p := range payments {
		if p.Status != domain.StatusPending || p.ProviderReference != nil {
			continue
		}
		if candidate != nil {
			r.logger.Warn("multiple pending payment records for order",
				slog.Int64("order_id", orderID),
			)
			return nil, false, domain.ErrPaymentNotFound
		}
		candidate = p
	}
	if candidate == nil {
		return nil, false, domain.ErrPaymentNotFound
	}

	return candidate, true, nil
}

func (r *reconcileUseCase) recordEvent(
	ctx context.Context,
	payment *domain.Payment,
	previous domain.LocalStatus,
	orderStatus domain.OrderStatus,
) error {
	now := r.now()

	event := domain.StatusChangedEvent{
		PaymentID:      payment.ID.String(),
		OrderID:        payment.OrderID,
		PreviousStatus: previous,
		Status:         payment.Status,
		OrderStatus:    orderStatus,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		OccurredAt:     now,
	}
	if payment.ProviderReference != nil {
		event.ProviderReference = *payment.ProviderReference
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode status changed event")
	}

	return r.outboxRepo.Create(ctx, &outboxDomain.OutboxEvent{
		ID:          uuid.Must(uuid.NewV7()),
		EventType:   domain.EventTypePaymentStatusChanged,
		AggregateID: strconv.FormatInt(payment.OrderID, 10),
		Payload:     string(payload),
		Status:      outboxDomain.OutboxEventStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
