// Package metrics exposes Prometheus instrumentation for the checkout flow:
// gateway call counts by method and outcome, finalized checkout outcomes by
// status and response code, and per-step latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcome label values.
const (
	OutcomeOK             = "ok"
	OutcomeTransportError = "transport_error"
	OutcomeProtocolError  = "protocol_error"
)

// Step label values for the protocol sequence.
const (
	StepCreateAccessCode    = "create_access_code"
	StepPostCardData        = "post_card_data"
	StepGetAccessCodeResult = "get_access_code_result"
)

// Metrics holds the collectors for one registry. Construct with New and a
// dedicated registry; tests get hermetic collectors that way.
type Metrics struct {
	GatewayCalls     *prometheus.CounterVec
	CheckoutOutcomes *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
}

// New registers the checkout collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eway_gateway_calls_total",
			Help: "Gateway API calls by method and outcome.",
		}, []string{"method", "outcome"}),
		CheckoutOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eway_checkout_outcomes_total",
			Help: "Finalized checkout attempts by status and response code.",
		}, []string{"status", "response_code"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eway_checkout_step_duration_seconds",
			Help:    "Latency of each protocol step.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
	}
}

// ObserveStep records one protocol step's duration.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordGatewayCall counts one gateway (or relay) call.
func (m *Metrics) RecordGatewayCall(method, outcome string) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(method, outcome).Inc()
}

// RecordOutcome counts one finalized checkout attempt. responseCode may be
// empty when the attempt failed before a result was obtained.
func (m *Metrics) RecordOutcome(status, responseCode string) {
	if m == nil {
		return
	}
	m.CheckoutOutcomes.WithLabelValues(status, responseCode).Inc()
}
