package domain

import (
	"context"
	"fmt"
	"sync"
)

// OutcomeKind is the terminal result of dispatching one event.
type OutcomeKind int

const (
	// OutcomeReply carries a reply for the invoking user.
	OutcomeReply OutcomeKind = iota + 1
	// OutcomeUnknownCommand carries the fallback reply for unregistered commands.
	OutcomeUnknownCommand
	// OutcomeWelcomed means a welcome was sent to the welcome channel.
	OutcomeWelcomed
	// OutcomeSuppressed means the event required no action.
	OutcomeSuppressed
	// OutcomeRelayed carries the downstream response of a raw relay.
	OutcomeRelayed
	// OutcomeDelivered means an altar offering reached its channel.
	OutcomeDelivered
	// OutcomeFailed carries a classified failure.
	OutcomeFailed
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReply:
		return "reply"
	case OutcomeUnknownCommand:
		return "unknown_command"
	case OutcomeWelcomed:
		return "welcomed"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeRelayed:
		return "relayed"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureClass classifies non-fatal dispatch failures.
type FailureClass int

const (
	// FailureTransport is a network-level relay failure.
	FailureTransport FailureClass = iota + 1
	// FailureReplyDelivery is a failed send to a chat channel.
	FailureReplyDelivery
	// FailureRelayDisabled means no relay destination is configured.
	FailureRelayDisabled
	// FailureDedupStore means the welcome tracker could not be read or written.
	FailureDedupStore
	// FailureInvalidEvent means the event could not be handled as given.
	FailureInvalidEvent
	// FailureAbandoned means the producer stopped waiting before dispatch.
	FailureAbandoned
)

// String returns the label used in logs and metrics.
func (c FailureClass) String() string {
	switch c {
	case FailureTransport:
		return "transport"
	case FailureReplyDelivery:
		return "reply_delivery"
	case FailureRelayDisabled:
		return "relay_disabled"
	case FailureDedupStore:
		return "dedup_store"
	case FailureInvalidEvent:
		return "invalid_event"
	case FailureAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Failure is a classified dispatch failure.
type Failure struct {
	Class FailureClass
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Class, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// RelayRequest is one delivery attempt to an external endpoint.
type RelayRequest struct {
	Destination string
	Body        []byte
}

// DeliveryResult is the downstream response to a relay, whatever its status.
type DeliveryResult struct {
	StatusCode  int
	ContentType string
	Body        string
}

// TransportFailure is a relay that never got an HTTP response.
type TransportFailure struct {
	Destination string
	Err         error
}

// NewTransportFailure wraps err as a TransportFailure.
func NewTransportFailure(destination string, err error) *TransportFailure {
	return &TransportFailure{Destination: destination, Err: err}
}

func (e *TransportFailure) Error() string {
	return "relay transport failure: " + e.Cause()
}

// Cause returns a human-readable description of what went wrong.
func (e *TransportFailure) Cause() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// RelayResult is the result of a best-effort side-effect relay.
type RelayResult struct {
	Delivery *DeliveryResult
	Err      error
}

// PendingRelay is a side-effect relay running in the background.
type PendingRelay struct {
	done   chan struct{}
	once   sync.Once
	result RelayResult
}

// NewPendingRelay creates an unresolved PendingRelay.
func NewPendingRelay() *PendingRelay {
	return &PendingRelay{done: make(chan struct{})}
}

// Resolve records the result. Only the first call has an effect.
func (p *PendingRelay) Resolve(result RelayResult) {
	p.once.Do(func() {
		p.result = result
		close(p.done)
	})
}

// Done is closed once the relay has finished.
func (p *PendingRelay) Done() <-chan struct{} { return p.done }

// Wait blocks until the relay finishes or ctx is done.
func (p *PendingRelay) Wait(ctx context.Context) (RelayResult, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return RelayResult{}, ctx.Err()
	}
}

// Outcome is the single terminal result of dispatching an event.
type Outcome struct {
	Kind     OutcomeKind
	Reply    *ReplyPayload
	Delivery *DeliveryResult
	Failure  *Failure

	// SideEffect is set for relay-and-reply commands. It never affects Reply.
	SideEffect *PendingRelay
}

// ReplyOutcome creates an outcome carrying reply.
func ReplyOutcome(reply ReplyPayload) Outcome {
	return Outcome{Kind: OutcomeReply, Reply: &reply}
}

// UnknownCommandOutcome creates the fallback outcome for unregistered commands.
func UnknownCommandOutcome() Outcome {
	reply := UnknownCommandReply()
	return Outcome{Kind: OutcomeUnknownCommand, Reply: &reply}
}

// WelcomedOutcome records the welcome that was sent.
func WelcomedOutcome(reply ReplyPayload) Outcome {
	return Outcome{Kind: OutcomeWelcomed, Reply: &reply}
}

// SuppressedOutcome creates a no-op outcome.
func SuppressedOutcome() Outcome {
	return Outcome{Kind: OutcomeSuppressed}
}

// RelayedOutcome carries a downstream response.
func RelayedOutcome(result DeliveryResult) Outcome {
	return Outcome{Kind: OutcomeRelayed, Delivery: &result}
}

// DeliveredOutcome records a successful channel delivery.
func DeliveredOutcome(reply ReplyPayload) Outcome {
	return Outcome{Kind: OutcomeDelivered, Reply: &reply}
}

// FailedOutcome creates a classified failure.
func FailedOutcome(class FailureClass, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Failure: &Failure{Class: class, Err: err}}
}

// Err returns the failure, if any.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}
