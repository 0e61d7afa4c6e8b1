package ports

import (
	"context"
	"errors"

	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

var (
	// ErrQueueFull is returned when an event cannot be buffered.
	ErrQueueFull = errors.New("event queue is full")

	// ErrQueueClosed is returned when publishing after shutdown.
	ErrQueueClosed = errors.New("event queue is closed")
)

// Envelope carries one event to the dispatcher and its outcome back to the
// transport that produced it.
type Envelope struct {
	Event domain.InboundEvent

	// Complete is called exactly once with the outcome unless Claim refuses
	// the envelope. May be nil.
	Complete func(ctx context.Context, outcome domain.Outcome)

	// Claim is called before dispatch. When it returns false the producer
	// has stopped waiting and the event must not be dispatched. May be nil.
	Claim func() bool
}

// EventPublisher hands envelopes to the dispatcher without blocking.
type EventPublisher interface {
	Publish(ctx context.Context, env Envelope) error
}
