package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/http/dto"
	httpMocks "github.com/allisson/payment-reconciler/internal/payment/http/mocks"
	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// setupTestHandler creates a payment handler and a router with its routes mounted.
func setupTestHandler(
	t *testing.T,
) (*gin.Engine, *httpMocks.MockWebhookUseCase, *httpMocks.MockPollingUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockWebhook := &httpMocks.MockWebhookUseCase{}
	mockPolling := &httpMocks.MockPollingUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewPaymentHandler(mockWebhook, mockPolling, logger)

	router := gin.New()
	router.POST("/v1/webhooks/payments", handler.WebhookHandler)
	router.GET("/v1/orders/:id/payment-status", handler.PollHandler)
	router.POST("/v1/orders/:id/payment-return", handler.ReturnHandler)

	return router, mockWebhook, mockPolling
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestPaymentHandler_WebhookHandler(t *testing.T) {
	body := `{"type":"payment","action":"payment.updated","data":{"id":"555"}}`

	t.Run("Success_Queued", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		mockWebhook.On("Receive", mock.Anything, mock.MatchedBy(func(e *paymentUseCase.InboundEvent) bool {
			return string(e.Body) == body &&
				e.SignatureHeader == "ts=1,v1=abc" &&
				e.RequestID == "req-1" &&
				e.SourceIP == "192.0.2.10" &&
				e.Query.Get("data.id") == "555" &&
				!e.ReceivedAt.IsZero()
		})).Return(&paymentUseCase.WebhookOutcome{
			Status:   paymentUseCase.WebhookQueued,
			EventKey: "payment:555:payment.updated",
		}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments?data.id=555", strings.NewReader(body))
		req.RemoteAddr = "192.0.2.10:4000"
		req.Header.Set(SignatureHeader, "ts=1,v1=abc")
		req.Header.Set(RequestIDHeader, "req-1")

		w := doRequest(router, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.WebhookResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "queued", response.Status)
		assert.Empty(t, response.Reason)
		mockWebhook.AssertExpectations(t)
	})

	t.Run("Success_Duplicate", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		mockWebhook.On("Receive", mock.Anything, mock.Anything).
			Return(&paymentUseCase.WebhookOutcome{Status: paymentUseCase.WebhookDuplicate}, nil).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "duplicate", decodeJSON(t, w)["status"])
	})

	t.Run("Success_Ignored", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		mockWebhook.On("Receive", mock.Anything, mock.Anything).
			Return(&paymentUseCase.WebhookOutcome{
				Status: paymentUseCase.WebhookIgnored,
				Reason: paymentUseCase.IgnoredUnsupportedType,
			}, nil).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeJSON(t, w)
		assert.Equal(t, "ignored", response["status"])
		assert.Equal(t, "unsupported_type", response["reason"])
	})

	t.Run("Error_Unauthorized", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		mockWebhook.On("Receive", mock.Anything, mock.Anything).
			Return(nil, domain.ErrAuthenticityFailure).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decodeJSON(t, w)["error"])
	})

	t.Run("Error_MalformedPayload", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		mockWebhook.On("Receive", mock.Anything, mock.Anything).
			Return(nil, domain.ErrMalformedPayload).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader("{}")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeJSON(t, w)["error"])
	})

	t.Run("Error_DispatchUnavailable", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		mockWebhook.On("Receive", mock.Anything, mock.Anything).
			Return(nil, domain.ErrDispatchUnavailable).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(body)))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "30", w.Header().Get("Retry-After"))
	})

	t.Run("Error_BodyTooLarge", func(t *testing.T) {
		router, mockWebhook, _ := setupTestHandler(t)

		large := bytes.Repeat([]byte("a"), MaxBodyBytes+1)
		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", bytes.NewReader(large)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockWebhook.AssertNotCalled(t, "Receive", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_PollHandler(t *testing.T) {
	t.Run("Success_Pending", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		mockPolling.On("Poll", mock.Anything, int64(42)).
			Return(&paymentUseCase.PollStatus{
				OrderID:               42,
				OrderStatus:           domain.OrderStatusPendingPayment,
				PaymentStatus:         domain.StatusPending,
				ShouldContinuePolling: true,
				NextCheckIn:           10 * time.Second,
				RecommendedInterval:   30 * time.Second,
				Message:               paymentUseCase.MessagePaymentPending,
			}, nil).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodGet, "/v1/orders/42/payment-status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.PaymentStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, int64(42), response.OrderID)
		assert.Equal(t, "pending_payment", response.OrderStatus)
		require.NotNil(t, response.PaymentStatus)
		assert.Equal(t, "pending", *response.PaymentStatus)
		assert.True(t, response.ShouldContinuePolling)
		assert.Equal(t, int64(10), response.NextCheckInSeconds)
		assert.Equal(t, int64(30), response.RecommendedIntervalSeconds)
		mockPolling.AssertExpectations(t)
	})

	t.Run("Error_InvalidOrderID", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		w := doRequest(router, httptest.NewRequest(http.MethodGet, "/v1/orders/abc/payment-status", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "validation_error", decodeJSON(t, w)["error"])
		mockPolling.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything)
	})

	t.Run("Error_OrderNotFound", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		mockPolling.On("Poll", mock.Anything, int64(404)).
			Return(nil, domain.ErrOrderNotFound).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodGet, "/v1/orders/404/payment-status", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Error_Internal", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		mockPolling.On("Poll", mock.Anything, int64(42)).
			Return(nil, apperrors.New("database down")).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodGet, "/v1/orders/42/payment-status", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", decodeJSON(t, w)["error"])
	})
}

func TestPaymentHandler_ReturnHandler(t *testing.T) {
	t.Run("Success_QueryPaymentID", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		query := url.Values{"payment_id": []string{"555"}}
		mockPolling.On("ConfirmReturn", mock.Anything, int64(42), mock.Anything, query).
			Return(&paymentUseCase.PollStatus{
				OrderID:       42,
				OrderStatus:   domain.OrderStatusPaid,
				PaymentStatus: domain.StatusApproved,
				Message:       paymentUseCase.MessagePaymentFinalized,
			}, nil).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/orders/42/payment-return?payment_id=555", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeJSON(t, w)
		assert.Equal(t, "paid", response["order_status"])
		assert.Equal(t, "approved", response["payment_status"])
		assert.Equal(t, false, response["should_continue_polling"])
		mockPolling.AssertExpectations(t)
	})

	t.Run("Success_BodyPaymentID", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		body := `{"data":{"id":"555"}}`
		mockPolling.On("ConfirmReturn", mock.Anything, int64(42), []byte(body), url.Values{}).
			Return(&paymentUseCase.PollStatus{OrderID: 42, OrderStatus: domain.OrderStatusPaid}, nil).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/orders/42/payment-return", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		mockPolling.AssertExpectations(t)
	})

	t.Run("Error_InvalidOrderID", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/orders/0/payment-return", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockPolling.AssertNotCalled(t, "ConfirmReturn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_OrderNotFound", func(t *testing.T) {
		router, _, mockPolling := setupTestHandler(t)

		mockPolling.On("ConfirmReturn", mock.Anything, int64(42), mock.Anything, mock.Anything).
			Return(nil, domain.ErrOrderNotFound).
			Once()

		w := doRequest(router, httptest.NewRequest(http.MethodPost, "/v1/orders/42/payment-return", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
