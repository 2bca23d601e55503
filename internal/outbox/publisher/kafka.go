// Package publisher delivers outbox events to Kafka, or to the log when no broker is configured.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/outbox/domain"
	"github.com/allisson/payment-reconciler/internal/tracing"
)

// Header keys set on every published message.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes outbox events to a single topic keyed by aggregate id.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaWriter creates a synchronous writer that waits for all in-sync replicas.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
}

// NewKafkaPublisher creates a KafkaPublisher writing to topic.
func NewKafkaPublisher(writer MessageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// Publish writes the event and returns once the broker acknowledged it.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(event.ID.String())},
		{Key: HeaderEventType, Value: []byte(event.EventType)},
	}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.AggregateID),
		Value:   []byte(event.Payload),
		Headers: headers,
		Time:    event.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.Wrap(err, "failed to write kafka message")
	}

	p.logger.Debug("outbox event published",
		slog.String("event_id", event.ID.String()),
		slog.String("topic", p.topic),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
