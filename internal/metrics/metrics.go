// Package metrics holds the process-wide Prometheus collectors. They are
// registered on the default registry and served by promhttp on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallEvents counts webhook deliveries by kind (state, summary) and the
	// outcome the ingestor reported, or "error"/"rejected" when it did not run.
	CallEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymcrm_call_events_total",
			Help: "PBX call events processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CallEventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gymcrm_call_event_duration_seconds",
			Help:    "Time spent applying one PBX call event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymcrm_chat_messages_total",
			Help: "Chat messages received, by result (inserted, duplicate, skipped)",
		},
		[]string{"result"},
	)

	TenantCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymcrm_tenant_cache_requests_total",
			Help: "Gym to director cache lookups, by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gymcrm_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// ObserveCallEvent records one processed call event.
func ObserveCallEvent(kind, outcome string, started time.Time) {
	CallEvents.WithLabelValues(kind, outcome).Inc()
	CallEventDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
