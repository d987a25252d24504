package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ingest, dedupe and flag events.
type Metrics struct {
	// Statements processed by operation and provider
	Statements *prometheus.CounterVec

	// Tokens persisted by section
	TokensPersisted *prometheus.CounterVec

	// Dedupe outcomes by status and section
	Outcomes *prometheus.CounterVec

	// End-to-end operation latency
	OperationLatency *prometheus.HistogramVec

	// Flag event delivery
	EventsPublished     prometheus.Counter
	EventsDropped       prometheus.Counter
	EventFailures       prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

// New creates a Metrics instance with every dedupe metric registered.
func New() *Metrics {
	return &Metrics{
		Statements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stmtguard_statements_total",
			Help: "Statements processed by operation and provider",
		}, []string{"operation", "provider"}), // operation: "ingest", "dedupe"

		TokensPersisted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stmtguard_tokens_persisted_total",
			Help: "Transaction tokens persisted by section",
		}, []string{"hash_type"}),

		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stmtguard_dedupe_outcomes_total",
			Help: "Dedupe outcomes by risk status and section",
		}, []string{"status", "hash_type"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stmtguard_operation_duration_seconds",
			Help:    "Duration of ingest and dedupe operations including extraction",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stmtguard_flag_events_published_total",
			Help: "Flag events acknowledged by the broker",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stmtguard_flag_events_dropped_total",
			Help: "Flag events dropped because the circuit breaker was open",
		}),
		EventFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stmtguard_flag_event_failures_total",
			Help: "Flag event produce failures",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stmtguard_flag_events_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) IncStatement(operation, provider string) {
	if m != nil {
		m.Statements.WithLabelValues(operation, provider).Inc()
	}
}

func (m *Metrics) AddTokensPersisted(hashType string, n int) {
	if m != nil && n > 0 {
		m.TokensPersisted.WithLabelValues(hashType).Add(float64(n))
	}
}

// IncOutcome records one correlation result.
func (m *Metrics) IncOutcome(status, hashType string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, hashType).Inc()
	}
}

func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) IncEventsPublished() {
	if m != nil {
		m.EventsPublished.Inc()
	}
}

func (m *Metrics) IncEventsDropped() {
	if m != nil {
		m.EventsDropped.Inc()
	}
}

func (m *Metrics) IncEventFailures() {
	if m != nil {
		m.EventFailures.Inc()
	}
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
