package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRateLimitedRouter(t *testing.T, rps float64, burst int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := gin.New()
	router.Use(PollRateLimitMiddleware(ctx, rps, burst, slog.Default()))
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doStatusRequest(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestPollRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	router := newRateLimitedRouter(t, 10.0, 20)

	for i := 0; i < 5; i++ {
		w := doStatusRequest(router, "192.0.2.1:1234")
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestPollRateLimitMiddleware_BlocksRequestsExceedingLimit(t *testing.T) {
	router := newRateLimitedRouter(t, 1.0, 2)

	for i := 0; i < 2; i++ {
		w := doStatusRequest(router, "192.0.2.1:1234")
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doStatusRequest(router, "192.0.2.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestPollRateLimitMiddleware_IndependentPerIP(t *testing.T) {
	router := newRateLimitedRouter(t, 1.0, 1)

	assert.Equal(t, http.StatusOK, doStatusRequest(router, "192.0.2.1:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, doStatusRequest(router, "192.0.2.1:1234").Code)
	assert.Equal(t, http.StatusOK, doStatusRequest(router, "192.0.2.2:1234").Code)
}

func TestIPLimiterStore_RemoveIdle(t *testing.T) {
	store := &ipLimiterStore{rps: 1, burst: 1}
	store.getLimiter("192.0.2.1")
	store.getLimiter("192.0.2.2")

	val, _ := store.limiters.Load("192.0.2.1")
	entry := val.(*ipLimiterEntry)
	entry.lastAccess = time.Now().Add(-2 * time.Hour)

	store.removeIdle(time.Now().Add(-time.Hour))

	_, ok := store.limiters.Load("192.0.2.1")
	assert.False(t, ok)
	_, ok = store.limiters.Load("192.0.2.2")
	assert.True(t, ok)
}
