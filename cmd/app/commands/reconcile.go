package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// RunReconcile reconciles a provider payment id on demand, the same way a webhook would
// but synchronously. Useful to repair an order after a missed notification.
func RunReconcile(
	ctx context.Context,
	reconciler paymentUseCase.ReconcileUseCase,
	logger *slog.Logger,
	writer io.Writer,
	paymentID string,
	format string,
) error {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return fmt.Errorf("payment id is required")
	}

	logger.Info("reconciling payment", slog.String("payment_id", paymentID))

	result, err := reconciler.Reconcile(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("failed to reconcile payment: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"ok":         result.OK,
			"reason":     result.Reason,
			"status":     result.Status,
			"order_id":   result.OrderID,
			"payment_id": result.PaymentID,
			"changed":    result.Changed,
		})
	}

	if !result.OK {
		_, err = fmt.Fprintf(writer, "Payment %s not reconciled: %s\n", paymentID, result.Reason)
		return err
	}
	if result.Changed {
		_, err = fmt.Fprintf(writer, "Payment %s for order %d moved to %s\n", result.PaymentID, result.OrderID, result.Status)
		return err
	}
	_, err = fmt.Fprintf(writer, "Payment %s for order %d already %s\n", result.PaymentID, result.OrderID, result.Status)
	return err
}
