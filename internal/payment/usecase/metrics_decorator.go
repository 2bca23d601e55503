package usecase

import (
	"context"
	"net/url"
	"time"

	"github.com/allisson/payment-reconciler/internal/metrics"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

const metricsDomain = "payments"

// reconcileUseCaseWithMetrics decorates ReconcileUseCase with metrics instrumentation.
// The status label carries the reconcile reason.
type reconcileUseCaseWithMetrics struct {
	next    ReconcileUseCase
	metrics metrics.BusinessMetrics
}

// NewReconcileUseCaseWithMetrics wraps a ReconcileUseCase with metrics recording.
func NewReconcileUseCaseWithMetrics(useCase ReconcileUseCase, m metrics.BusinessMetrics) ReconcileUseCase {
	return &reconcileUseCaseWithMetrics{next: useCase, metrics: m}
}

func (r *reconcileUseCaseWithMetrics) Reconcile(
	ctx context.Context,
	candidateID string,
) (*domain.ReconcileResult, error) {
	start := time.Now()
	result, err := r.next.Reconcile(ctx, candidateID)

	status := "error"
	if err == nil {
		status = string(result.Reason)
	}

	r.metrics.RecordOperation(ctx, metricsDomain, "reconcile", status)
	r.metrics.RecordDuration(ctx, metricsDomain, "reconcile", time.Since(start), status)

	return result, err
}

// webhookUseCaseWithMetrics decorates WebhookUseCase with metrics instrumentation.
type webhookUseCaseWithMetrics struct {
	next    WebhookUseCase
	metrics metrics.BusinessMetrics
}

// NewWebhookUseCaseWithMetrics wraps a WebhookUseCase with metrics recording.
func NewWebhookUseCaseWithMetrics(useCase WebhookUseCase, m metrics.BusinessMetrics) WebhookUseCase {
	return &webhookUseCaseWithMetrics{next: useCase, metrics: m}
}

func (w *webhookUseCaseWithMetrics) Receive(ctx context.Context, event *InboundEvent) (*WebhookOutcome, error) {
	start := time.Now()
	outcome, err := w.next.Receive(ctx, event)

	status := "error"
	if err == nil {
		status = string(outcome.Status)
	}

	w.metrics.RecordOperation(ctx, metricsDomain, "webhook_receive", status)
	w.metrics.RecordDuration(ctx, metricsDomain, "webhook_receive", time.Since(start), status)

	return outcome, err
}

// pollingUseCaseWithMetrics decorates PollingUseCase with metrics instrumentation.
type pollingUseCaseWithMetrics struct {
	next    PollingUseCase
	metrics metrics.BusinessMetrics
}

// NewPollingUseCaseWithMetrics wraps a PollingUseCase with metrics recording.
func NewPollingUseCaseWithMetrics(useCase PollingUseCase, m metrics.BusinessMetrics) PollingUseCase {
	return &pollingUseCaseWithMetrics{next: useCase, metrics: m}
}

func (p *pollingUseCaseWithMetrics) Poll(ctx context.Context, orderID int64) (*PollStatus, error) {
	start := time.Now()
	status, err := p.next.Poll(ctx, orderID)
	p.record(ctx, "poll", start, status, err)
	return status, err
}

func (p *pollingUseCaseWithMetrics) ConfirmReturn(
	ctx context.Context,
	orderID int64,
	body []byte,
	query url.Values,
) (*PollStatus, error) {
	start := time.Now()
	status, err := p.next.ConfirmReturn(ctx, orderID, body, query)
	p.record(ctx, "confirm_return", start, status, err)
	return status, err
}

func (p *pollingUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	status *PollStatus,
	err error,
) {
	label := "continue"
	switch {
	case err != nil:
		label = "error"
	case status.MaxAttemptsReached:
		label = "max_attempts_reached"
	case !status.ShouldContinuePolling:
		label = "stop"
	}

	p.metrics.RecordOperation(ctx, metricsDomain, operation, label)
	p.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), label)
}
