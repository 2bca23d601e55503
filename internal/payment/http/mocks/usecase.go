// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"
	"net/url"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// MockWebhookUseCase is a mock implementation of WebhookUseCase for testing.
type MockWebhookUseCase struct {
	mock.Mock
}

// Receive mocks the Receive method of WebhookUseCase.
func (m *MockWebhookUseCase) Receive(
	ctx context.Context,
	event *usecase.InboundEvent,
) (*usecase.WebhookOutcome, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.WebhookOutcome), args.Error(1)
}

// MockPollingUseCase is a mock implementation of PollingUseCase for testing.
type MockPollingUseCase struct {
	mock.Mock
}

// Poll mocks the Poll method of PollingUseCase.
func (m *MockPollingUseCase) Poll(ctx context.Context, orderID int64) (*usecase.PollStatus, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.PollStatus), args.Error(1)
}

// ConfirmReturn mocks the ConfirmReturn method of PollingUseCase.
func (m *MockPollingUseCase) ConfirmReturn(
	ctx context.Context,
	orderID int64,
	body []byte,
	query url.Values,
) (*usecase.PollStatus, error) {
	args := m.Called(ctx, orderID, body, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.PollStatus), args.Error(1)
}
