package ports

import (
	"context"

	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

// Relay delivers a request to an external endpoint in exactly one attempt.
// Any HTTP response is returned as a DeliveryResult; network failures are
// returned as *domain.TransportFailure.
type Relay interface {
	Forward(ctx context.Context, req domain.RelayRequest) (domain.DeliveryResult, error)
}
