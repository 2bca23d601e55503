package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/service"
)

// PollStatus is the answer given to a polling client.
type PollStatus struct {
	OrderID               int64
	OrderStatus           domain.OrderStatus
	PaymentStatus         domain.LocalStatus
	ShouldContinuePolling bool
	NextCheckIn           time.Duration
	// RecommendedInterval is never below the configured minimum interval.
	RecommendedInterval time.Duration
	MaxAttemptsReached  bool
	Message             string
}

// Poll status messages.
const (
	MessagePaymentFinalized   = "payment finalized"
	MessagePaymentPending     = "payment pending"
	MessageNoPayment          = "no payment found for order"
	MessageMaxAttemptsReached = "maximum status checks reached, awaiting provider notification"
	MessageCheckFailed        = "payment status temporarily unavailable"
)

// pollingUseCase implements PollingUseCase.
type pollingUseCase struct {
	orderRepo   OrderRepository
	paymentRepo PaymentRepository
	reconciler  ReconcileUseCase
	backoff     *Backoff
	minInterval time.Duration
	logger      *slog.Logger
}

// NewPollingUseCase creates the polling coordinator.
func NewPollingUseCase(
	orderRepo OrderRepository,
	paymentRepo PaymentRepository,
	reconciler ReconcileUseCase,
	backoff *Backoff,
	minInterval time.Duration,
	logger *slog.Logger,
) PollingUseCase {
	return &pollingUseCase{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		reconciler:  reconciler,
		backoff:     backoff,
		minInterval: minInterval,
		logger:      logger,
	}
}

// Poll reports the order's payment status and reconciles with the provider when the
// backoff schedule allows it.
func (p *pollingUseCase) Poll(ctx context.Context, orderID int64) (*PollStatus, error) {
	return p.load(ctx, orderID)
}

// ConfirmReturn reconciles the payment id found on the client return URL, then reports
// the order's status without a second provider call.
func (p *pollingUseCase) ConfirmReturn(
	ctx context.Context,
	orderID int64,
	body []byte,
	query url.Values,
) (*PollStatus, error) {
	order, err := p.orderRepo.Get(ctx, orderID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return p.degraded(&PollStatus{OrderID: orderID}, "failed to load order", err), nil
	}

	notification := service.ParseNotification(body, query)
	if notification.RawID == "" {
		return p.evaluate(ctx, order, true), nil
	}

	result, err := p.reconciler.Reconcile(ctx, notification.RawID)
	switch {
	case err != nil:
		p.logger.Error("return reconciliation failed",
			slog.Int64("order_id", orderID),
			slog.String("payment_id", notification.RawID),
			slog.Any("error", err),
		)
	case result.OK && result.OrderID != orderID:
		p.logger.Warn("returned payment belongs to another order",
			slog.Int64("order_id", orderID),
			slog.Int64("payment_order_id", result.OrderID),
			slog.String("payment_id", result.PaymentID),
		)
	case result.Changed:
		p.resetBackoff(ctx, orderID)
	}

	// Reload so the answer reflects the transition just applied.
	order, err = p.orderRepo.Get(ctx, orderID)
	if err != nil {
		return p.degraded(&PollStatus{OrderID: orderID}, "failed to reload order", err), nil
	}
	return p.evaluate(ctx, order, false), nil
}

func (p *pollingUseCase) load(ctx context.Context, orderID int64) (*PollStatus, error) {
	order, err := p.orderRepo.Get(ctx, orderID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return p.degraded(&PollStatus{OrderID: orderID}, "failed to load order", err), nil
	}
	return p.evaluate(ctx, order, true), nil
}

// evaluate never fails once the order is known: store and database errors are logged and
// answered with a status that keeps the client polling.
func (p *pollingUseCase) evaluate(ctx context.Context, order *domain.Order, allowCheck bool) *PollStatus {
	orderID := order.ID
	status := &PollStatus{
		OrderID:             order.ID,
		OrderStatus:         order.Status,
		RecommendedInterval: p.minInterval,
	}

	payment, err := p.paymentRepo.GetActiveByOrderID(ctx, orderID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		status.Message = MessageNoPayment
		return status
	}
	if err != nil {
		return p.degraded(status, "failed to load payment", err)
	}
	status.PaymentStatus = payment.Status

	if payment.Status.IsTerminal() {
		return p.finalized(ctx, status)
	}

	state, err := p.backoff.State(ctx, orderID)
	if err != nil {
		return p.degraded(status, "failed to read backoff state", err)
	}

	if p.backoff.MaxAttemptsReached(state) {
		return p.maxAttempts(status)
	}

	if !allowCheck || !p.backoff.ShouldCheckNow(state) {
		return p.pending(status, state, MessagePaymentPending)
	}

	claimed, err := p.backoff.Claim(ctx, orderID)
	if err != nil {
		return p.degraded(status, "failed to claim poll slot", err)
	}
	if !claimed {
		return p.pending(status, state, MessagePaymentPending)
	}
	defer func() {
		if err := p.backoff.Release(context.WithoutCancel(ctx), orderID); err != nil {
			p.logger.Warn("failed to release poll slot",
				slog.Int64("order_id", orderID),
				slog.Any("error", err),
			)
		}
	}()

	// Another check may have finished between reading the state and claiming the slot.
	state, err = p.backoff.State(ctx, orderID)
	if err != nil {
		return p.degraded(status, "failed to read backoff state", err)
	}
	if p.backoff.MaxAttemptsReached(state) {
		return p.maxAttempts(status)
	}
	if !p.backoff.ShouldCheckNow(state) {
		return p.pending(status, state, MessagePaymentPending)
	}

	candidate := ""
	if payment.ProviderReference != nil {
		candidate = *payment.ProviderReference
	} else if payment.PreferenceID != nil {
		candidate = *payment.PreferenceID
	}

	message := MessagePaymentPending
	if candidate != "" {
		result, err := p.reconciler.Reconcile(ctx, candidate)
		switch {
		case err != nil:
			p.logger.Error("poll reconciliation failed",
				slog.Int64("order_id", orderID),
				slog.Any("error", err),
			)
			message = MessageCheckFailed
		case result.OK && result.Status.IsTerminal():
			status.PaymentStatus = result.Status
			if orderStatus, ok := domain.OrderStatusFor(result.Status); ok {
				status.OrderStatus = orderStatus
			}
			return p.finalized(ctx, status)
		case result.Changed:
			status.PaymentStatus = result.Status
			p.resetBackoff(ctx, orderID)
			return p.pending(status, BackoffState{}, MessagePaymentPending)
		case result.Reason == domain.ReasonProviderUnavailable:
			message = MessageCheckFailed
		}
	}

	state, err = p.backoff.RecordAttempt(ctx, orderID)
	if err != nil {
		return p.degraded(status, "failed to record poll attempt", err)
	}
	if p.backoff.MaxAttemptsReached(state) {
		return p.maxAttempts(status)
	}

	return p.pending(status, state, message)
}

func (p *pollingUseCase) resetBackoff(ctx context.Context, orderID int64) {
	if err := p.backoff.RecordSuccess(ctx, orderID); err != nil {
		p.logger.Warn("failed to reset backoff state",
			slog.Int64("order_id", orderID),
			slog.Any("error", err),
		)
	}
}

func (p *pollingUseCase) maxAttempts(status *PollStatus) *PollStatus {
	status.MaxAttemptsReached = true
	status.Message = MessageMaxAttemptsReached
	return status
}

func (p *pollingUseCase) degraded(status *PollStatus, msg string, err error) *PollStatus {
	p.logger.Error(msg,
		slog.Int64("order_id", status.OrderID),
		slog.Any("error", err),
	)
	status.ShouldContinuePolling = true
	status.NextCheckIn = p.minInterval
	status.RecommendedInterval = p.minInterval
	status.Message = MessageCheckFailed
	return status
}

func (p *pollingUseCase) finalized(ctx context.Context, status *PollStatus) *PollStatus {
	p.resetBackoff(ctx, status.OrderID)
	status.ShouldContinuePolling = false
	status.Message = MessagePaymentFinalized
	return status
}

func (p *pollingUseCase) pending(status *PollStatus, state BackoffState, message string) *PollStatus {
	status.ShouldContinuePolling = true
	status.NextCheckIn = p.backoff.NextCheckIn(state)
	if status.NextCheckIn > status.RecommendedInterval {
		status.RecommendedInterval = status.NextCheckIn
	}
	status.Message = message
	return status
}
