package containerreader

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// readerMetrics holds Prometheus metrics for one container_reader node.
type readerMetrics struct {
	chunks  *prometheus.CounterVec // by chunk kind
	skipped prometheus.Counter
}

func newReaderMetrics(registry *metric.MetricsRegistry, name string) (*readerMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"node": name}
	chunks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "container_reader",
		Name:        "chunks_total",
		Help:        "Chunks read from the container",
		ConstLabels: labels,
	}, []string{"kind"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "container_reader",
		Name:        "entries_skipped_total",
		Help:        "Entries skipped for lacking the ordering attribute",
		ConstLabels: labels,
	}, nil)

	if err := registry.RegisterCounterVec(name, "chunks", chunks); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "entries_skipped", skipped); err != nil {
		return nil, err
	}
	return &readerMetrics{chunks: chunks, skipped: skipped.WithLabelValues()}, nil
}

func (m *readerMetrics) recordChunk(kind string) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(kind).Inc()
}

func (m *readerMetrics) recordSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skipped.Add(float64(n))
}
