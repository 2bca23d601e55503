// Package usecase implements the outbox relay, which publishes events written by
// committed transactions.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/allisson/payment-reconciler/internal/database"
	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/outbox/domain"
)

// Config holds relay configuration.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// OutboxEventRepository defines the relay's view of outbox persistence.
type OutboxEventRepository interface {
	GetPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, event *domain.OutboxEvent) error
}

// EventPublisher delivers a single event to its destination.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Relay periodically publishes pending outbox events.
type Relay struct {
	config     Config
	txManager  database.TxManager
	outboxRepo OutboxEventRepository
	publisher  EventPublisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewRelay creates a new Relay.
func NewRelay(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxEventRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Relay {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	return &Relay{
		config:     config,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs the relay loop until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting outbox relay",
		slog.Duration("interval", r.config.Interval),
		slog.Int("batch_size", r.config.BatchSize),
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping outbox relay")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.Error("failed to process outbox batch", slog.Any("error", err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many were published.
// Rows stay locked for the duration of the batch so concurrent relays never publish the
// same event twice.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := r.outboxRepo.GetPending(ctx, r.config.BatchSize)
		if err != nil {
			return err
		}

		for _, event := range events {
			if err := r.publisher.Publish(ctx, event); err != nil {
				r.logger.Error("failed to publish outbox event",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("attempts", event.Attempts+1),
					slog.Any("error", err),
				)
				event.MarkAttemptFailed(err, r.config.MaxAttempts)
			} else {
				event.MarkPublished(r.now())
				published++
			}

			if err := r.outboxRepo.Update(ctx, event); err != nil {
				return apperrors.Wrap(err, "failed to record outbox delivery")
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		r.logger.Info("published outbox events", slog.Int("count", published))
	}

	return published, nil
}
