package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "postgres", cfg.DBDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
				assert.Equal(t, "memory", cfg.KVStoreDriver)
				assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
				assert.Equal(t, 50, cfg.WebhookRateLimit)
				assert.Equal(t, time.Minute, cfg.WebhookRateWindow)
				assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
				assert.Equal(t, 5*time.Second, cfg.BackoffBase)
				assert.Equal(t, 300*time.Second, cfg.BackoffCap)
				assert.Equal(t, 20, cfg.BackoffMaxAttempts)
				assert.Equal(t, 30*time.Second, cfg.PollMinInterval)
				assert.Equal(t, "payment.status_changed", cfg.KafkaTopic)
				assert.Equal(t, "payments", cfg.MetricsNamespace)
				assert.False(t, cfg.WebhookPermissive)
				assert.Len(t, SplitList(cfg.WebhookAllowedCIDRs), 3)
			},
		},
		{
			name: "load custom server configuration",
			envVars: map[string]string{
				"SERVER_HOST": "localhost",
				"SERVER_PORT": "9090",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.ServerHost)
				assert.Equal(t, 9090, cfg.ServerPort)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":               "mysql",
				"DB_CONNECTION_STRING":    "user:password@tcp(localhost:3306)/testdb",
				"DB_MAX_OPEN_CONNECTIONS": "50",
				"DB_MAX_IDLE_CONNECTIONS": "10",
				"DB_CONN_MAX_LIFETIME":    "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mysql", cfg.DBDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/testdb", cfg.DBConnectionString)
				assert.Equal(t, 50, cfg.DBMaxOpenConnections)
				assert.Equal(t, 10, cfg.DBMaxIdleConnections)
				assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
			},
		},
		{
			name: "load webhook configuration",
			envVars: map[string]string{
				"APP_ENV":                     "production",
				"WEBHOOK_SECRET":              "s3cret",
				"WEBHOOK_PERMISSIVE":          "true",
				"WEBHOOK_ALLOWED_CIDRS":       "10.0.0.0/8",
				"WEBHOOK_RATE_LIMIT":          "5",
				"WEBHOOK_RATE_WINDOW_SECONDS": "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.Equal(t, "s3cret", cfg.WebhookSecret)
				assert.True(t, cfg.WebhookPermissive)
				assert.Equal(t, []string{"10.0.0.0/8"}, SplitList(cfg.WebhookAllowedCIDRs))
				assert.Equal(t, 5, cfg.WebhookRateLimit)
				assert.Equal(t, 10*time.Second, cfg.WebhookRateWindow)
			},
		},
		{
			name: "load dispatcher and backoff configuration",
			envVars: map[string]string{
				"DISPATCH_WORKERS":     "2",
				"DISPATCH_QUEUE_SIZE":  "4",
				"BACKOFF_BASE_SECONDS": "1",
				"BACKOFF_CAP_SECONDS":  "8",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2, cfg.DispatchWorkers)
				assert.Equal(t, 4, cfg.DispatchQueueSize)
				assert.Equal(t, time.Second, cfg.BackoffBase)
				assert.Equal(t, 8*time.Second, cfg.BackoffCap)
			},
		},
		{
			name: "load custom log level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, "debug", cfg.GetGinMode())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a , ,b "))
}

func TestGetGinMode(t *testing.T) {
	for _, level := range []string{"info", "warn", "error", "unknown"} {
		cfg := &Config{LogLevel: level}
		assert.Equal(t, "release", cfg.GetGinMode())
	}
}
