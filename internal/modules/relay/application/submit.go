package application

import (
	"context"
	"sync/atomic"

	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

const (
	envelopePending int32 = iota
	envelopeClaimed
	envelopeWithdrawn
)

// Submit publishes event and waits for its outcome or for ctx to be done.
// It is used by transports that must answer their caller synchronously.
//
// An envelope still queued when ctx is done is withdrawn and never
// dispatched. Once a worker has claimed it, Submit waits for its outcome
// so that the caller answers with what was actually committed.
func Submit(
	ctx context.Context,
	publisher ports.EventPublisher,
	event domain.InboundEvent,
) (domain.Outcome, error) {
	done := make(chan domain.Outcome, 1)
	var state atomic.Int32

	err := publisher.Publish(ctx, ports.Envelope{
		Event: event,
		Complete: func(_ context.Context, outcome domain.Outcome) {
			done <- outcome
		},
		Claim: func() bool {
			return state.CompareAndSwap(envelopePending, envelopeClaimed)
		},
	})
	if err != nil {
		return domain.Outcome{}, err
	}

	select {
	case outcome := <-done:
		return outcome, nil
	case <-ctx.Done():
		if state.CompareAndSwap(envelopePending, envelopeWithdrawn) {
			return domain.Outcome{}, ctx.Err()
		}
		return <-done, nil
	}
}
