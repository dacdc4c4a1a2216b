// Package metrics exposes Prometheus instrumentation for discovery
// operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ansuz"

const subsystem = "discovery"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the discovery collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// OperationDuration measures operation latency.
	// Labels: operation (search, related, ...), status (ok, error)
	OperationDuration *prometheus.HistogramVec

	// NodesScanned counts nodes examined per operation.
	// Labels: operation
	NodesScanned *prometheus.CounterVec

	// CorruptNodes counts records skipped as corrupt or duplicate.
	// Labels: operation
	CorruptNodes *prometheus.CounterVec

	// PagesServed counts budgeted pages returned.
	// Labels: operation
	PagesServed *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Discovery operation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation", "status"}),
		NodesScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "nodes_scanned_total",
			Help:      "Total nodes examined by discovery operations",
		}, []string{"operation"}),
		CorruptNodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "corrupt_nodes_total",
			Help:      "Total records skipped while enumerating a scope",
		}, []string{"operation"}),
		PagesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pages_served_total",
			Help:      "Total token-budgeted pages returned",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.OperationDuration, m.NodesScanned, m.CorruptNodes, m.PagesServed)
	}
	return m
}

// Observe records the duration of one operation started at start.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.OperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// Scanned records nodes examined and records skipped by one operation.
func (m *Metrics) Scanned(operation string, nodes, skipped int) {
	if m == nil {
		return
	}
	m.NodesScanned.WithLabelValues(operation).Add(float64(nodes))
	if skipped > 0 {
		m.CorruptNodes.WithLabelValues(operation).Add(float64(skipped))
	}
}

// Page records a budgeted page served.
func (m *Metrics) Page(operation string) {
	if m == nil {
		return
	}
	m.PagesServed.WithLabelValues(operation).Inc()
}
