package metrics

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	assert.NotNil(t, provider.MeterProvider())

	output := scrape(t, provider)
	assert.Contains(t, output, "go_goroutines")
	assert.Contains(t, output, "test_app_process_")
}

func TestProvider_ShutdownWithoutMeterProvider(t *testing.T) {
	provider := &Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestRegisterQueueDepth(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	var depth atomic.Int64
	depth.Store(3)
	require.NoError(t, RegisterQueueDepth(provider.MeterProvider(), "test_app", func() int {
		return int(depth.Load())
	}))

	assert.Regexp(t, `test_app_dispatch_queue_depth(_[a-z]+)?(\{[^}]*\})? 3`, scrape(t, provider))

	depth.Store(0)
	assert.Regexp(t, `test_app_dispatch_queue_depth(_[a-z]+)?(\{[^}]*\})? 0`, scrape(t, provider))
}
