package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// OutboxProcessor publishes pending outbox events.
type OutboxProcessor interface {
	ProcessBatch(ctx context.Context) (int, error)
	Start(ctx context.Context) error
}

// RunProcessOutbox publishes pending outbox events. With once set it processes a single
// batch and reports the count; otherwise it runs until ctx is cancelled.
func RunProcessOutbox(
	ctx context.Context,
	processor OutboxProcessor,
	logger *slog.Logger,
	writer io.Writer,
	once bool,
) error {
	if once {
		published, err := processor.ProcessBatch(ctx)
		if err != nil {
			return fmt.Errorf("failed to process outbox batch: %w", err)
		}
		logger.Info("outbox batch processed", slog.Int("published", published))
		_, err = fmt.Fprintf(writer, "Published %d outbox event(s)\n", published)
		return err
	}

	if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("outbox relay stopped: %w", err)
	}
	return nil
}
