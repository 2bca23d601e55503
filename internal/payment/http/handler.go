// Package http provides HTTP handlers for payment notifications and order status checks.
package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/httputil"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
	"github.com/allisson/payment-reconciler/internal/payment/http/dto"
	paymentUseCase "github.com/allisson/payment-reconciler/internal/payment/usecase"
	customValidation "github.com/allisson/payment-reconciler/internal/validation"
)

// MaxBodyBytes caps webhook and return payloads.
const MaxBodyBytes = 64 << 10

// Request headers read from provider notifications.
const (
	SignatureHeader = "x-signature"
	RequestIDHeader = "x-request-id"
)

// PaymentHandler handles provider webhooks and client status checks.
type PaymentHandler struct {
	webhookUseCase paymentUseCase.WebhookUseCase
	pollingUseCase paymentUseCase.PollingUseCase
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler with required dependencies.
func NewPaymentHandler(
	webhookUseCase paymentUseCase.WebhookUseCase,
	pollingUseCase paymentUseCase.PollingUseCase,
	logger *slog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		webhookUseCase: webhookUseCase,
		pollingUseCase: pollingUseCase,
		logger:         logger,
	}
}

// WebhookHandler accepts a provider notification.
// POST /v1/webhooks/payments - Authenticated by signature, source network and rate.
// Returns 200 OK for queued, ignored and duplicate notifications so the provider stops
// retrying. Reconciliation runs in the background.
func (h *PaymentHandler) WebhookHandler(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	event := &paymentUseCase.InboundEvent{
		Body:            body,
		Query:           c.Request.URL.Query(),
		SourceIP:        c.ClientIP(),
		SignatureHeader: c.GetHeader(SignatureHeader),
		RequestID:       c.GetHeader(RequestIDHeader),
		ReceivedAt:      time.Now().UTC(),
	}

	outcome, err := h.webhookUseCase.Receive(c.Request.Context(), event)
	if err != nil {
		if apperrors.Is(err, domain.ErrMalformedPayload) {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutcomeToResponse(outcome))
}

// PollHandler reports the payment status of an order and advises when to check again.
// GET /v1/orders/:id/payment-status
func (h *PaymentHandler) PollHandler(c *gin.Context) {
	params, ok := h.orderParams(c)
	if !ok {
		return
	}

	status, err := h.pollingUseCase.Poll(c.Request.Context(), params.ID())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPollStatusToResponse(status))
}

// ReturnHandler reconciles the payment id carried by the client return redirect.
// POST /v1/orders/:id/payment-return - The id may arrive in the query string or body.
func (h *PaymentHandler) ReturnHandler(c *gin.Context) {
	params, ok := h.orderParams(c)
	if !ok {
		return
	}

	body, err := readBody(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	status, err := h.pollingUseCase.ConfirmReturn(
		c.Request.Context(),
		params.ID(),
		body,
		c.Request.URL.Query(),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapPollStatusToResponse(status))
}

func (h *PaymentHandler) orderParams(c *gin.Context) (*dto.OrderPathParams, bool) {
	params := &dto.OrderPathParams{OrderID: c.Param("id")}
	if err := params.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return nil, false
	}
	return params, true
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "failed to read request body")
	}
	return body, nil
}
