package dto

import (
	"math"
	"time"

	"github.com/allisson/payment-reconciler/internal/payment/usecase"
)

// WebhookResponse is returned to the provider for every accepted delivery.
type WebhookResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// MapOutcomeToResponse converts a webhook outcome into its HTTP response.
func MapOutcomeToResponse(outcome *usecase.WebhookOutcome) WebhookResponse {
	return WebhookResponse{
		Status: string(outcome.Status),
		Reason: outcome.Reason,
	}
}

// PaymentStatusResponse is returned by the polling and return endpoints.
type PaymentStatusResponse struct {
	OrderID                    int64   `json:"order_id"`
	OrderStatus                string  `json:"order_status"`
	PaymentStatus              *string `json:"payment_status"`
	ShouldContinuePolling      bool    `json:"should_continue_polling"`
	NextCheckInSeconds         int64   `json:"next_check_in_seconds"`
	RecommendedIntervalSeconds int64   `json:"recommended_interval_seconds"`
	MaxAttemptsReached         bool    `json:"max_attempts_reached"`
	Message                    string  `json:"message"`
}

// MapPollStatusToResponse converts a poll status into its HTTP response.
func MapPollStatusToResponse(status *usecase.PollStatus) PaymentStatusResponse {
	response := PaymentStatusResponse{
		OrderID:                    status.OrderID,
		OrderStatus:                string(status.OrderStatus),
		ShouldContinuePolling:      status.ShouldContinuePolling,
		NextCheckInSeconds:         seconds(status.NextCheckIn),
		RecommendedIntervalSeconds: seconds(status.RecommendedInterval),
		MaxAttemptsReached:         status.MaxAttemptsReached,
		Message:                    status.Message,
	}
	if status.PaymentStatus != "" {
		paymentStatus := string(status.PaymentStatus)
		response.PaymentStatus = &paymentStatus
	}
	return response
}

// seconds rounds up so clients never check earlier than advised.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
