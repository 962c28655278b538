package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

// IndexingMetrics observes indexing calls and circuit breaker transitions.
type IndexingMetrics struct {
	service string

	callsTotal     *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
	breakerChanges *prometheus.CounterVec
}

func NewIndexingMetrics(service string, registerer prometheus.Registerer) *IndexingMetrics {
	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexing",
			Name:      "calls_total",
			Help:      "Total indexing calls by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	recordsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexing",
			Name:      "records_total",
			Help:      "Records submitted in bulk requests, split by outcome.",
		},
		[]string{"service", "kind", "outcome"},
	)
	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexing",
			Name:      "call_duration_seconds",
			Help:      "Indexing call duration in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "kind"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_open",
			Help:      "1 when the circuit breaker for an operation is not closed.",
		},
		[]string{"service", "operation"},
	)
	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_state_changes_total",
			Help:      "Circuit breaker transitions by target state.",
		},
		[]string{"service", "operation", "to"},
	)

	registerer.MustRegister(callsTotal, recordsTotal, callDuration, breakerState, breakerChanges)

	return &IndexingMetrics{
		service:        service,
		callsTotal:     callsTotal,
		recordsTotal:   recordsTotal,
		callDuration:   callDuration,
		breakerState:   breakerState,
		breakerChanges: breakerChanges,
	}
}

func (m *IndexingMetrics) ObserveIndexing(kind domain.RunKind, status domain.IndexStatus, submitted, failed int, duration time.Duration) {
	m.callsTotal.WithLabelValues(m.service, string(kind), string(status)).Inc()
	m.callDuration.WithLabelValues(m.service, string(kind)).Observe(duration.Seconds())
	if submitted <= 0 {
		return
	}
	if failed > 0 {
		m.recordsTotal.WithLabelValues(m.service, string(kind), "failed").Add(float64(failed))
	}
	if accepted := submitted - failed; accepted > 0 {
		m.recordsTotal.WithLabelValues(m.service, string(kind), "accepted").Add(float64(accepted))
	}
}

// ObserveBreakerState matches the resilience executor's state change hook.
func (m *IndexingMetrics) ObserveBreakerState(operation, _, to string) {
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
	m.breakerChanges.WithLabelValues(m.service, operation, to).Inc()
}
