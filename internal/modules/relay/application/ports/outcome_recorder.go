package ports

import "github.com/sglre6355/covenbot/internal/modules/relay/domain"

// OutcomeRecorder observes dispatch results.
type OutcomeRecorder interface {
	// RecordOutcome is called once per dispatched event.
	RecordOutcome(kind domain.EventKind, outcome domain.Outcome)

	// RecordSideEffect is called once per finished side-effect relay.
	RecordSideEffect(command string, result domain.RelayResult)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) RecordOutcome(domain.EventKind, domain.Outcome) {}

func (NopRecorder) RecordSideEffect(string, domain.RelayResult) {}
