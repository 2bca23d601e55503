// Package mocks provides mock implementations of the payment use case dependencies.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/payment-reconciler/internal/outbox/domain"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/service"
	"github.com/allisson/payment-reconciler/internal/worker"
)

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return m.Called(ctx, payment).Error(0)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	return m.Called(ctx, payment).Error(0)
}

func (m *MockPaymentRepository) GetByProviderReference(ctx context.Context, ref string) (*domain.Payment, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetActiveByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListActiveByOrderID(ctx context.Context, orderID int64) ([]*domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, orderID int64) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	return m.Called(ctx, orderID, status).Error(0)
}

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository.
type MockOutboxEventRepository struct {
	mock.Mock
}

func (m *MockOutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

// MockProviderClient is a mock implementation of ProviderClient.
type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) GetPayment(ctx context.Context, paymentID string) (*domain.ProviderPayment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProviderPayment), args.Error(1)
}

// MockInventoryService is a mock implementation of InventoryService.
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) DeductForOrder(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

// MockAuthenticityGate is a mock implementation of AuthenticityGate.
type MockAuthenticityGate struct {
	mock.Mock
}

func (m *MockAuthenticityGate) Accept(ctx context.Context, req service.AuthRequest) error {
	return m.Called(ctx, req).Error(0)
}

// MockDispatcher is a mock implementation of Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Submit(job worker.Job) error {
	return m.Called(job).Error(0)
}

// MockReconcileUseCase is a mock implementation of ReconcileUseCase.
type MockReconcileUseCase struct {
	mock.Mock
}

func (m *MockReconcileUseCase) Reconcile(ctx context.Context, candidateID string) (*domain.ReconcileResult, error) {
	args := m.Called(ctx, candidateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconcileResult), args.Error(1)
}
