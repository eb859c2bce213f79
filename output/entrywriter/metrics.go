package entrywriter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// writerMetrics holds Prometheus metrics for one entry_writer node.
type writerMetrics struct {
	entries *prometheus.CounterVec // by reason: structure, auto, gap
	writes  *prometheus.CounterVec // by chunk kind
	splits  *prometheus.CounterVec
}

func newWriterMetrics(registry *metric.MetricsRegistry, name string) (*writerMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"node": name}
	m := &writerMetrics{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "entry_writer",
			Name:        "entries_created_total",
			Help:        "Entries created in the container",
			ConstLabels: labels,
		}, []string{"reason"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "entry_writer",
			Name:        "chunks_written_total",
			Help:        "Chunks committed to the container",
			ConstLabels: labels,
		}, []string{"kind"}),
		splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "entry_writer",
			Name:        "event_splits_total",
			Help:        "Event chunks split at an entry boundary",
			ConstLabels: labels,
		}, nil),
	}

	if err := registry.RegisterCounterVec(name, "entries", m.entries); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "writes", m.writes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "splits", m.splits); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *writerMetrics) recordEntries(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.entries.WithLabelValues(reason).Add(float64(n))
}

func (m *writerMetrics) recordWrite(kind string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(kind).Inc()
}

func (m *writerMetrics) recordSplits(n int) {
	if m == nil || n == 0 {
		return
	}
	m.splits.WithLabelValues().Add(float64(n))
}
