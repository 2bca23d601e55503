package publisher

import (
	"context"
	"encoding/json"
	"log/slog"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/outbox/domain"
)

// LogPublisher writes events to the structured log. It is used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event. A payload that is not valid JSON is rejected so it is retried
// and eventually marked failed, the same way a broker rejection would be.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	var payload map[string]any
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return apperrors.Wrap(err, "invalid outbox payload")
	}

	p.logger.InfoContext(ctx, "outbox event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.Any("payload", payload),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
