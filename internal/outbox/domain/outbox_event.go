// Package domain defines transactional outbox events. Events are written in the same
// transaction as the state change they describe and published later by the relay.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus is the delivery status of an outbox event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusPublished OutboxEventStatus = "published"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// OutboxEvent is a pending or delivered domain event.
//
// AggregateID is used as the message key so events of the same order keep their
// relative order on a partitioned topic.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	AggregateID string
	Payload     string
	Status      OutboxEventStatus
	Attempts    int
	LastError   *string
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarkPublished records a successful delivery.
func (e *OutboxEvent) MarkPublished(now time.Time) {
	e.Status = OutboxEventStatusPublished
	e.PublishedAt = &now
	e.LastError = nil
}

// MarkAttemptFailed records a failed delivery. The event becomes failed once
// maxAttempts is reached and is no longer picked up by the relay.
func (e *OutboxEvent) MarkAttemptFailed(err error, maxAttempts int) {
	e.Attempts++
	msg := err.Error()
	e.LastError = &msg
	if maxAttempts > 0 && e.Attempts >= maxAttempts {
		e.Status = OutboxEventStatusFailed
	}
}
