package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by mspikes.
const Namespace = "mspikes"

// Metrics contains the pipeline-level metrics shared by every node
type Metrics struct {
	ChunksReceived *prometheus.CounterVec
	ChunksEmitted  *prometheus.CounterVec
	NodeErrors     *prometheus.CounterVec
	RunStatus      prometheus.Gauge
	RunDuration    prometheus.Histogram
	RecordsPulled  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "node",
				Name:      "chunks_received_total",
				Help:      "Chunks delivered to a node",
			},
			[]string{"node", "kind"},
		),

		ChunksEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "node",
				Name:      "chunks_emitted_total",
				Help:      "Chunks a node forwarded to its targets",
			},
			[]string{"node", "kind"},
		),

		NodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "node",
				Name:      "errors_total",
				Help:      "Errors raised by a node, by error class",
			},
			[]string{"node", "class"},
		),

		RunStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "run",
				Name:      "status",
				Help:      "Pipeline run status (0=idle, 1=running, 2=succeeded, 3=failed)",
			},
		),

		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "run",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),

		RecordsPulled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "source",
				Name:      "records_pulled_total",
				Help:      "Records pulled from each root source",
			},
			[]string{"source"},
		),
	}
}

// Run status values for Metrics.RunStatus
const (
	RunIdle      = 0
	RunRunning   = 1
	RunSucceeded = 2
	RunFailed    = 3
)

// RecordReceived counts a chunk delivered to node. Safe on nil Metrics.
func (m *Metrics) RecordReceived(node, kind string) {
	if m == nil {
		return
	}
	m.ChunksReceived.WithLabelValues(node, kind).Inc()
}

// RecordEmitted counts a chunk forwarded by node.
func (m *Metrics) RecordEmitted(node, kind string) {
	if m == nil {
		return
	}
	m.ChunksEmitted.WithLabelValues(node, kind).Inc()
}

// RecordError counts an error raised by node under its error class.
func (m *Metrics) RecordError(node, class string) {
	if m == nil {
		return
	}
	m.NodeErrors.WithLabelValues(node, class).Inc()
}

// RecordPulled counts a record pulled from a root source.
func (m *Metrics) RecordPulled(source string) {
	if m == nil {
		return
	}
	m.RecordsPulled.WithLabelValues(source).Inc()
}

// SetRunStatus sets the run status gauge.
func (m *Metrics) SetRunStatus(status int) {
	if m == nil {
		return
	}
	m.RunStatus.Set(float64(status))
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(seconds float64) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(seconds)
}
