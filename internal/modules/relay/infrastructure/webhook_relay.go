package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

const (
	// DefaultRelayTimeout bounds a single relay attempt.
	DefaultRelayTimeout = 5 * time.Second

	maxResponseBody = 64 << 10
)

var _ ports.Relay = (*WebhookRelay)(nil)

// WebhookRelay posts JSON payloads to webhook endpoints.
type WebhookRelay struct {
	httpClient *http.Client
}

// NewWebhookRelay creates a new WebhookRelay. A non-positive timeout uses
// DefaultRelayTimeout.
func NewWebhookRelay(timeout time.Duration) *WebhookRelay {
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	return &WebhookRelay{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forward sends req.Body to req.Destination exactly once. Any HTTP response
// is returned as a DeliveryResult regardless of its status.
func (r *WebhookRelay) Forward(
	ctx context.Context,
	req domain.RelayRequest,
) (domain.DeliveryResult, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		req.Destination,
		bytes.NewReader(req.Body),
	)
	if err != nil {
		return domain.DeliveryResult{}, domain.NewTransportFailure(
			req.Destination,
			fmt.Errorf("failed to build request: %w", err),
		)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return domain.DeliveryResult{}, domain.NewTransportFailure(req.Destination, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return domain.DeliveryResult{}, domain.NewTransportFailure(
			req.Destination,
			fmt.Errorf("failed to read response: %w", err),
		)
	}

	return domain.DeliveryResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
	}, nil
}
