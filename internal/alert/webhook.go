package alert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Detail   string `json:"detail,omitempty"`
	At       string `json:"at"`
}

// WebhookAlerter posts alerts to an ops webhook endpoint.
type WebhookAlerter struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookAlerter(endpoint string) (*WebhookAlerter, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookAlerterWithClient(endpoint, client)
}

func NewWebhookAlerterWithClient(endpoint string, client *resty.Client) (*WebhookAlerter, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("alert webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid alert webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookAlerter{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (w *WebhookAlerter) Send(ctx context.Context, a Alert) error {
	if w == nil || w.client == nil {
		return fmt.Errorf("alerter is not initialized")
	}
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("alert summary is required")
	}

	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	severity := a.Severity
	if severity == "" {
		severity = SeverityWarning
	}

	reqBody := webhookRequest{
		Severity: severity.String(),
		Summary:  a.Summary,
		Detail:   a.Detail,
		At:       at.UTC().Format(time.RFC3339),
	}

	response, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(w.endpoint)
	if err != nil {
		return &WebhookError{
			Message:   "alert request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &WebhookError{
			Message:   "alert endpoint returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &WebhookError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("alert endpoint returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
