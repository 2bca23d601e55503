package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxEvent_MarkAttemptFailed(t *testing.T) {
	event := &OutboxEvent{Status: OutboxEventStatusPending}

	event.MarkAttemptFailed(errors.New("broker down"), 2)
	assert.Equal(t, 1, event.Attempts)
	assert.Equal(t, OutboxEventStatusPending, event.Status)
	require.NotNil(t, event.LastError)
	assert.Equal(t, "broker down", *event.LastError)

	event.MarkAttemptFailed(errors.New("broker down"), 2)
	assert.Equal(t, 2, event.Attempts)
	assert.Equal(t, OutboxEventStatusFailed, event.Status)
}

func TestOutboxEvent_MarkAttemptFailed_Unlimited(t *testing.T) {
	event := &OutboxEvent{Status: OutboxEventStatusPending}
	for i := 0; i < 10; i++ {
		event.MarkAttemptFailed(errors.New("x"), 0)
	}
	assert.Equal(t, OutboxEventStatusPending, event.Status)
}

func TestOutboxEvent_MarkPublished(t *testing.T) {
	msg := "previous failure"
	event := &OutboxEvent{Status: OutboxEventStatusPending, LastError: &msg}
	now := time.Now()

	event.MarkPublished(now)

	assert.Equal(t, OutboxEventStatusPublished, event.Status)
	require.NotNil(t, event.PublishedAt)
	assert.Equal(t, now, *event.PublishedAt)
	assert.Nil(t, event.LastError)
}
