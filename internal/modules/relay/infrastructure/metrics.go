package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sglre6355/covenbot/internal/modules/relay/application/ports"
	"github.com/sglre6355/covenbot/internal/modules/relay/domain"
)

var _ ports.OutcomeRecorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder counts dispatch outcomes and side-effect relays.
type PrometheusRecorder struct {
	outcomes    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "covenbot",
				Name:      "dispatch_outcomes_total",
				Help:      "Dispatched events by event kind and outcome.",
			},
			[]string{"event", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "covenbot",
				Name:      "dispatch_failures_total",
				Help:      "Failed dispatches by event kind and failure class.",
			},
			[]string{"event", "class"},
		),
		sideEffects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "covenbot",
				Name:      "side_effect_relays_total",
				Help:      "Finished side-effect relays by command and result.",
			},
			[]string{"command", "result"},
		),
	}

	for _, c := range []prometheus.Collector{r.outcomes, r.failures, r.sideEffects} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterQueueDepth exposes the number of buffered events as a gauge.
func RegisterQueueDepth(reg prometheus.Registerer, depth func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "covenbot",
			Name:      "event_queue_depth",
			Help:      "Events buffered and waiting for a worker.",
		},
		func() float64 { return float64(depth()) },
	))
}

// RecordOutcome counts one dispatched event.
func (r *PrometheusRecorder) RecordOutcome(kind domain.EventKind, outcome domain.Outcome) {
	r.outcomes.WithLabelValues(kind.String(), outcome.Kind.String()).Inc()
	if outcome.Failure != nil {
		r.failures.WithLabelValues(kind.String(), outcome.Failure.Class.String()).Inc()
	}
}

// RecordSideEffect counts one finished side-effect relay.
func (r *PrometheusRecorder) RecordSideEffect(command string, result domain.RelayResult) {
	r.sideEffects.WithLabelValues(command, sideEffectLabel(result)).Inc()
}

func sideEffectLabel(result domain.RelayResult) string {
	switch {
	case result.Err != nil:
		return "error"
	case result.Delivery != nil && result.Delivery.StatusCode >= 400:
		return "rejected"
	default:
		return "delivered"
	}
}
