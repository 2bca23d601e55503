package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/service"
	"github.com/allisson/payment-reconciler/internal/worker"
)

// InboundEvent is one webhook delivery as received over HTTP. It is not persisted.
type InboundEvent struct {
	Body            []byte
	Query           url.Values
	SourceIP        string
	SignatureHeader string
	RequestID       string
	ReceivedAt      time.Time
}

// WebhookStatus is the outcome reported to the webhook sender.
type WebhookStatus string

const (
	WebhookQueued    WebhookStatus = "queued"
	WebhookIgnored   WebhookStatus = "ignored"
	WebhookDuplicate WebhookStatus = "duplicate"
)

// Reasons attached to ignored webhooks.
const (
	IgnoredUnsupportedType = "unsupported_type"
	IgnoredTestEvent       = "test_event"
	IgnoredNotActionable   = "not_actionable"
)

// WebhookOutcome describes how a delivery was handled.
type WebhookOutcome struct {
	Status    WebhookStatus
	Reason    string
	EventKey  string
	PaymentID string
}

// WebhookConfig configures the webhook use case.
type WebhookConfig struct {
	// Production drops notifications the provider flags as simulations.
	Production bool
	// ReleaseTimeout bounds the ledger release done after a job gives up.
	ReleaseTimeout time.Duration
}

// webhookUseCase implements WebhookUseCase.
type webhookUseCase struct {
	gate       AuthenticityGate
	ledger     *Ledger
	dispatcher Dispatcher
	reconciler ReconcileUseCase
	normalizer *service.Normalizer
	cfg        WebhookConfig
	logger     *slog.Logger
}

// NewWebhookUseCase creates the webhook entry point.
func NewWebhookUseCase(
	gate AuthenticityGate,
	ledger *Ledger,
	dispatcher Dispatcher,
	reconciler ReconcileUseCase,
	normalizer *service.Normalizer,
	cfg WebhookConfig,
	logger *slog.Logger,
) WebhookUseCase {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = 5 * time.Second
	}
	return &webhookUseCase{
		gate:       gate,
		ledger:     ledger,
		dispatcher: dispatcher,
		reconciler: reconciler,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Receive authenticates, classifies and deduplicates a delivery, then hands the
// reconciliation to the dispatcher. It never calls the provider.
func (w *webhookUseCase) Receive(ctx context.Context, event *InboundEvent) (*WebhookOutcome, error) {
	notification := service.ParseNotification(event.Body, event.Query)

	dataID := event.Query.Get("data.id")
	if dataID == "" {
		dataID = notification.RawID
	}

	err := w.gate.Accept(ctx, service.AuthRequest{
		SourceIP:        event.SourceIP,
		SignatureHeader: event.SignatureHeader,
		RequestID:       event.RequestID,
		DataID:          dataID,
	})
	if err != nil {
		return nil, err
	}

	if notification.Format == service.FormatUnrecognized {
		return nil, domain.ErrMalformedPayload
	}

	if !notification.IsPayment() {
		return &WebhookOutcome{Status: WebhookIgnored, Reason: IgnoredUnsupportedType}, nil
	}

	if w.cfg.Production && notification.IsTest() {
		return &WebhookOutcome{Status: WebhookIgnored, Reason: IgnoredTestEvent}, nil
	}

	id, class := w.normalizer.NormalizeID(notification.RawID)
	if !class.IsActionable() {
		w.logger.Info("webhook ignored",
			slog.String("raw_id", notification.RawID),
			slog.String("class", string(class)),
		)
		return &WebhookOutcome{Status: WebhookIgnored, Reason: IgnoredNotActionable, PaymentID: id}, nil
	}

	key := notification.EventKey(id)
	accepted, err := w.ledger.TryAccept(ctx, key)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return &WebhookOutcome{Status: WebhookDuplicate, EventKey: key, PaymentID: id}, nil
	}

	if err := w.dispatcher.Submit(w.reconcileJob(key, id)); err != nil {
		w.release(key)
		w.logger.Error("failed to dispatch reconciliation",
			slog.String("event_key", key),
			slog.Any("error", err),
		)
		return nil, apperrors.Wrap(domain.ErrDispatchUnavailable, err.Error())
	}

	return &WebhookOutcome{Status: WebhookQueued, EventKey: key, PaymentID: id}, nil
}

func (w *webhookUseCase) reconcileJob(key, paymentID string) worker.Job {
	return worker.Job{
		Key: key,
		Run: func(ctx context.Context) error {
			result, err := w.reconciler.Reconcile(ctx, paymentID)
			if err != nil {
				return err
			}
			if result.Retryable() {
				return domain.ErrProviderUnavailable
			}
			if result.Reason == domain.ReasonRecordNotFound {
				// Let a redelivery try again once the checkout record exists.
				w.logger.Warn("webhook reconciliation found no local record",
					slog.String("event_key", key),
					slog.String("payment_id", paymentID),
				)
				w.release(key)
			}
			return nil
		},
		Retryable: func(error) bool { return true },
		OnGiveUp: func(err error) {
			w.logger.Error("webhook reconciliation gave up",
				slog.String("event_key", key),
				slog.String("payment_id", paymentID),
				slog.Any("error", err),
			)
			w.release(key)
		},
	}
}

func (w *webhookUseCase) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ReleaseTimeout)
	defer cancel()

	if err := w.ledger.Release(ctx, key); err != nil {
		w.logger.Error("failed to release event key",
			slog.String("event_key", key),
			slog.Any("error", err),
		)
	}
}
