package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// RunPoll performs a status check for an order exactly as the polling endpoint does,
// backoff included.
func RunPoll(
	ctx context.Context,
	polling paymentUseCase.PollingUseCase,
	logger *slog.Logger,
	writer io.Writer,
	orderID int64,
	format string,
) error {
	if orderID <= 0 {
		return fmt.Errorf("order id must be a positive number, got: %d", orderID)
	}

	logger.Info("polling order payment status", slog.Int64("order_id", orderID))

	status, err := polling.Poll(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to poll order: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"order_id":                status.OrderID,
			"order_status":            status.OrderStatus,
			"payment_status":          status.PaymentStatus,
			"should_continue_polling": status.ShouldContinuePolling,
			"next_check_in_seconds":   int64(status.NextCheckIn.Seconds()),
			"max_attempts_reached":    status.MaxAttemptsReached,
			"message":                 status.Message,
		})
	}

	_, err = fmt.Fprintf(writer, "Order %d: %s (payment: %s) - %s\n",
		status.OrderID, status.OrderStatus, paymentStatusText(status), status.Message)
	if err != nil {
		return err
	}
	if status.ShouldContinuePolling {
		_, err = fmt.Fprintf(writer, "Next check in %s\n", status.NextCheckIn)
	}
	return err
}

func paymentStatusText(status *paymentUseCase.PollStatus) string {
	if status.PaymentStatus == "" {
		return "none"
	}
	return string(status.PaymentStatus)
}
