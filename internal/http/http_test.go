package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/payment-reconciler/internal/config"
	"github.com/allisson/payment-reconciler/internal/metrics"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	paymentHTTP "github.com/allisson/payment-reconciler/internal/payment/http"
	httpMocks "github.com/allisson/payment-reconciler/internal/payment/http/mocks"
	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestServer creates a test server without a database.
func createTestServer() *Server {
	return NewServer(nil, "127.0.0.1", 0, discardLogger())
}

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:                    "info",
		TracingServiceName:          "payment-reconciler-test",
		MetricsNamespace:            "test_app",
		RateLimitPollEnabled:        true,
		RateLimitPollRequestsPerSec: 1,
		RateLimitPollBurst:          2,
	}
}

// setupFullServer returns a server with every route registered and its use case mocks.
func setupFullServer(
	t *testing.T,
	cfg *config.Config,
	provider *metrics.Provider,
) (*Server, *httpMocks.MockWebhookUseCase, *httpMocks.MockPollingUseCase) {
	t.Helper()

	mockWebhook := &httpMocks.MockWebhookUseCase{}
	mockPolling := &httpMocks.MockPollingUseCase{}
	handler := paymentHTTP.NewPaymentHandler(mockWebhook, mockPolling, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server := createTestServer()
	require.NoError(t, server.SetupRouter(ctx, cfg, handler, provider))
	gin.SetMode(gin.TestMode)

	return server, mockWebhook, mockPolling
}

func TestHealthHandler(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessHandler(t *testing.T) {
	t.Run("NotReady_NilDB", func(t *testing.T) {
		server := createTestServer()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "not_ready", response["status"])

		components, ok := response["components"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "error", components["database"])
	})

	t.Run("Ready_PingSucceeds", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()
		mock.ExpectPing()

		server := NewServer(db, "127.0.0.1", 0, discardLogger())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"ok"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotReady_PingFails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() {
			_ = db.Close()
		}()
		mock.ExpectPing().WillReturnError(assert.AnError)

		server := NewServer(db, "127.0.0.1", 0, discardLogger())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCustomLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	requestID := w.Header().Get("X-Request-Id")
	parsed, err := uuid.Parse(requestID)
	require.NoError(t, err, "X-Request-Id should be a valid UUID")
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSetupRouter_Routes(t *testing.T) {
	server, mockWebhook, mockPolling := setupFullServer(t, testConfig(), nil)

	mockWebhook.On("Receive", mock.Anything, mock.Anything).
		Return(&paymentUseCase.WebhookOutcome{Status: paymentUseCase.WebhookQueued}, nil).
		Once()
	mockPolling.On("Poll", mock.Anything, int64(42)).
		Return(&paymentUseCase.PollStatus{OrderID: 42, OrderStatus: domain.OrderStatusPendingPayment}, nil).
		Once()
	mockPolling.On("ConfirmReturn", mock.Anything, int64(42), mock.Anything, mock.Anything).
		Return(&paymentUseCase.PollStatus{OrderID: 42, OrderStatus: domain.OrderStatusPaid}, nil).
		Once()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"Health", http.MethodGet, "/health", "", http.StatusOK},
		{"Ready", http.MethodGet, "/ready", "", http.StatusServiceUnavailable},
		{"Webhook", http.MethodPost, "/v1/webhooks/payments", `{"type":"payment","data":{"id":"1"}}`, http.StatusOK},
		{"PaymentStatus", http.MethodGet, "/v1/orders/42/payment-status", "", http.StatusOK},
		{"PaymentReturn", http.MethodPost, "/v1/orders/42/payment-return?payment_id=1", "", http.StatusOK},
		{"NotFound", http.MethodGet, "/nonexistent", "", http.StatusNotFound},
		{"NoMetrics", http.MethodGet, "/metrics", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			server.GetHandler().ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	mockWebhook.AssertExpectations(t)
	mockPolling.AssertExpectations(t)
}

func TestSetupRouter_PollRateLimit(t *testing.T) {
	server, _, mockPolling := setupFullServer(t, testConfig(), nil)

	mockPolling.On("Poll", mock.Anything, int64(42)).
		Return(&paymentUseCase.PollStatus{OrderID: 42, OrderStatus: domain.OrderStatusPendingPayment}, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/orders/42/payment-status", nil)
		req.RemoteAddr = "192.0.2.5:5555"
		server.GetHandler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestSetupRouter_WebhookNotRateLimitedByPollLimiter(t *testing.T) {
	server, mockWebhook, _ := setupFullServer(t, testConfig(), nil)

	mockWebhook.On("Receive", mock.Anything, mock.Anything).
		Return(&paymentUseCase.WebhookOutcome{Status: paymentUseCase.WebhookDuplicate}, nil)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", strings.NewReader(`{}`))
		req.RemoteAddr = "192.0.2.5:5555"
		server.GetHandler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSetupRouter_InvalidTrustedProxies(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = "not-a-cidr"

	handler := paymentHTTP.NewPaymentHandler(
		&httpMocks.MockWebhookUseCase{},
		&httpMocks.MockPollingUseCase{},
		discardLogger(),
	)

	server := createTestServer()
	err := server.SetupRouter(context.Background(), cfg, handler, nil)
	gin.SetMode(gin.TestMode)

	assert.Error(t, err)
}

func TestSetupRouter_RecordsHTTPMetrics(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	server, _, mockPolling := setupFullServer(t, testConfig(), provider)
	mockPolling.On("Poll", mock.Anything, int64(7)).
		Return(&paymentUseCase.PollStatus{OrderID: 7, OrderStatus: domain.OrderStatusPaid}, nil).
		Once()

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/orders/7/payment-status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	metricsServer := NewMetricsServer("127.0.0.1", 0, discardLogger(), provider)
	mw := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), "/v1/orders/:id/payment-status")
	assert.NotContains(t, mw.Body.String(), "/v1/orders/7/payment-status")
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server := createTestServer()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, server.Shutdown(shutdownCtx))
	assert.NoError(t, <-errChan)
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("127.0.0.1", 0, discardLogger(), provider)
	require.NotNil(t, metricsServer)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
