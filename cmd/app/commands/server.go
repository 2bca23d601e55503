package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/payment-reconciler/internal/app"
)

// RunServer starts the API server, the metrics server, the reconciliation dispatcher and
// the outbox relay. Blocks until SIGINT/SIGTERM or a fatal server error. On shutdown the
// servers stop accepting requests first, then queued reconciliations drain within
// DBConnMaxLifetime.
func RunServer(ctx context.Context, version string) error {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GetGinMode())

	app.Version = version
	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := container.TracingProvider(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Initializes every dependency of the API.
	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	dispatcher, err := container.Dispatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	dispatcher.Start(context.WithoutCancel(ctx))

	relay, err := container.Relay()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox relay: %w", err)
	}

	serverErr := make(chan error, 3)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if cfg.MetricsEnabled {
		metricsServer, err := container.MetricsServer()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErr <- fmt.Errorf("outbox relay error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", runErr))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	// Shutdown stops the servers before draining the dispatcher.
	if err := container.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}

	return runErr
}
