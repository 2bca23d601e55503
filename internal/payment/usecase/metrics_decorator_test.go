package usecase

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/payment-reconciler/internal/metrics"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/usecase/mocks"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

func expectMetrics(ctx context.Context, m *mockBusinessMetrics, operation, status string) {
	m.On("RecordOperation", ctx, "payments", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "payments", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

// stubWebhookUseCase returns a fixed outcome.
type stubWebhookUseCase struct {
	outcome *WebhookOutcome
	err     error
}

func (s *stubWebhookUseCase) Receive(context.Context, *InboundEvent) (*WebhookOutcome, error) {
	return s.outcome, s.err
}

// stubPollingUseCase returns a fixed status.
type stubPollingUseCase struct {
	status *PollStatus
	err    error
}

func (s *stubPollingUseCase) Poll(context.Context, int64) (*PollStatus, error) {
	return s.status, s.err
}

func (s *stubPollingUseCase) ConfirmReturn(context.Context, int64, []byte, url.Values) (*PollStatus, error) {
	return s.status, s.err
}

func TestReconcileUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecordsReason", func(t *testing.T) {
		next := &mocks.MockReconcileUseCase{}
		m := &mockBusinessMetrics{}
		decorator := NewReconcileUseCaseWithMetrics(next, m)

		expected := &domain.ReconcileResult{Reason: domain.ReasonProviderUnavailable}
		next.On("Reconcile", ctx, "1").Return(expected, nil).Once()
		expectMetrics(ctx, m, "reconcile", "provider_unavailable")

		result, err := decorator.Reconcile(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, expected, result)
		next.AssertExpectations(t)
		m.AssertExpectations(t)
	})

	t.Run("Error_RecordsError", func(t *testing.T) {
		next := &mocks.MockReconcileUseCase{}
		m := &mockBusinessMetrics{}
		decorator := NewReconcileUseCaseWithMetrics(next, m)

		next.On("Reconcile", ctx, "1").Return(nil, errors.New("db down")).Once()
		expectMetrics(ctx, m, "reconcile", "error")

		_, err := decorator.Reconcile(ctx, "1")
		assert.Error(t, err)
		m.AssertExpectations(t)
	})
}

func TestWebhookUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecordsOutcome", func(t *testing.T) {
		m := &mockBusinessMetrics{}
		decorator := NewWebhookUseCaseWithMetrics(
			&stubWebhookUseCase{outcome: &WebhookOutcome{Status: WebhookDuplicate}}, m,
		)
		expectMetrics(ctx, m, "webhook_receive", "duplicate")

		outcome, err := decorator.Receive(ctx, &InboundEvent{})
		require.NoError(t, err)
		assert.Equal(t, WebhookDuplicate, outcome.Status)
		m.AssertExpectations(t)
	})

	t.Run("Error_RecordsError", func(t *testing.T) {
		m := &mockBusinessMetrics{}
		decorator := NewWebhookUseCaseWithMetrics(
			&stubWebhookUseCase{err: domain.ErrAuthenticityFailure}, m,
		)
		expectMetrics(ctx, m, "webhook_receive", "error")

		_, err := decorator.Receive(ctx, &InboundEvent{})
		assert.ErrorIs(t, err, domain.ErrAuthenticityFailure)
		m.AssertExpectations(t)
	})
}

func TestPollingUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		status *PollStatus
		err    error
		label  string
	}{
		{"Continue", &PollStatus{ShouldContinuePolling: true}, nil, "continue"},
		{"Stop", &PollStatus{}, nil, "stop"},
		{"MaxAttempts", &PollStatus{MaxAttemptsReached: true}, nil, "max_attempts_reached"},
		{"Error", nil, domain.ErrOrderNotFound, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockBusinessMetrics{}
			decorator := NewPollingUseCaseWithMetrics(&stubPollingUseCase{status: tt.status, err: tt.err}, m)
			expectMetrics(ctx, m, "poll", tt.label)
			expectMetrics(ctx, m, "confirm_return", tt.label)

			_, err := decorator.Poll(ctx, 1)
			assert.Equal(t, tt.err, err)
			_, err = decorator.ConfirmReturn(ctx, 1, nil, nil)
			assert.Equal(t, tt.err, err)

			m.AssertExpectations(t)
		})
	}
}
