// Package provider implements the read-only client for the payment provider's REST API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
	"github.com/allisson/payment-reconciler/internal/payment/domain"
)

// Config configures the provider client.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client fetches payments from the provider. Every failure, including non-2xx
// responses, timeouts and undecodable bodies, is reported as domain.ErrProviderUnavailable.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a provider client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "payment-reconciler/1.0")
	if cfg.AccessToken != "" {
		httpClient.SetAuthToken(cfg.AccessToken)
	}

	return &Client{http: httpClient, logger: logger}
}

// paymentResponse is the subset of the provider payment resource we read.
type paymentResponse struct {
	ID                providerID  `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	TransactionAmount json.Number `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
	ExternalReference string      `json:"external_reference"`
	PaymentMethodID   string      `json:"payment_method_id"`
	Installments      int         `json:"installments"`
	DateCreated       string      `json:"date_created"`
	DateLastUpdated   string      `json:"date_last_updated"`
}

// providerID accepts the id as a JSON number or string. Non-numeric ids are kept verbatim.
type providerID string

func (id *providerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = providerID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid payment id %s: %w", data, err)
	}
	*id = providerID(n.String())
	return nil
}

// GetPayment fetches a payment by its provider id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*domain.ProviderPayment, error) {
	ctx, span := otel.Tracer("provider").Start(ctx, "provider.GetPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", paymentID).
		Get("/v1/payments/{id}")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, apperrors.Wrap(domain.ErrProviderUnavailable, err.Error())
	}

	c.logger.Debug("provider payment fetched",
		slog.String("payment_id", paymentID),
		slog.Int("status_code", resp.StatusCode()),
		slog.Duration("duration", time.Since(start)),
	)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		span.SetStatus(codes.Error, resp.Status())
		return nil, apperrors.Wrapf(domain.ErrProviderUnavailable, "provider returned %d", resp.StatusCode())
	}

	payment, err := decodePayment(resp.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, apperrors.Wrap(domain.ErrProviderUnavailable, err.Error())
	}

	return payment, nil
}

func decodePayment(body []byte) (*domain.ProviderPayment, error) {
	var r paymentResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("decode payment: missing id")
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)

	return &domain.ProviderPayment{
		ID:                string(r.ID),
		Status:            r.Status,
		StatusDetail:      r.StatusDetail,
		Amount:            r.TransactionAmount.String(),
		Currency:          r.CurrencyID,
		ExternalReference: r.ExternalReference,
		PaymentMethodID:   r.PaymentMethodID,
		Installments:      r.Installments,
		DateCreated:       parseTime(r.DateCreated),
		DateLastUpdated:   parseTime(r.DateLastUpdated),
		Raw:               raw,
	}, nil
}

// parseTime parses provider timestamps, returning nil for absent or unexpected values.
func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return &t
}
