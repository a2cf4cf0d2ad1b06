// Package metrics provides Prometheus instrumentation, grounded in
// Jeeves-Cluster-Organization-jeeves-core's coreengine/observability
// package: package-level promauto collectors plus small Record* functions
// called from the components that observe the event, instead of threading
// a metrics object through every constructor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agenthub_connected_clients",
			Help: "Number of currently connected clients by kind",
		},
		[]string{"kind"}, // device, constellation
	)

	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenthub_sessions_total",
			Help: "Total number of sessions by terminal state",
		},
		[]string{"state"}, // completed, failed, cancelled
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agenthub_sessions_active",
			Help: "Number of sessions currently running",
		},
	)

	dispatchToFirstCommandSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agenthub_dispatch_to_first_command_seconds",
			Help:    "Latency from task dispatch to the first COMMAND sent for it",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)
)

// SetConnectedClients updates the connected-client gauge for one kind.
func SetConnectedClients(kind string, n int) {
	connectedClients.WithLabelValues(kind).Set(float64(n))
}

// RecordSessionEnd increments the terminal-state counter and decrements the
// active-sessions gauge.
func RecordSessionEnd(state string) {
	sessionsTotal.WithLabelValues(state).Inc()
	sessionsActive.Dec()
}

// RecordSessionStart increments the active-sessions gauge.
func RecordSessionStart() {
	sessionsActive.Inc()
}

// ObserveDispatchToFirstCommand records the latency, in seconds, between a
// task's dispatch and the first COMMAND issued against it.
func ObserveDispatchToFirstCommand(seconds float64) {
	dispatchToFirstCommandSeconds.Observe(seconds)
}
