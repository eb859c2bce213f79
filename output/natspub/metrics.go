package natspub

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// publisherMetrics holds Prometheus metrics for one nats_publisher node.
type publisherMetrics struct {
	published *prometheus.CounterVec // by chunk kind
	bytes     *prometheus.CounterVec // by chunk kind
}

func newPublisherMetrics(registry *metric.MetricsRegistry, name string) (*publisherMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"node": name}
	m := &publisherMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "nats_publisher",
			Name:        "chunks_total",
			Help:        "Chunks published",
			ConstLabels: labels,
		}, []string{"kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "nats_publisher",
			Name:        "bytes_total",
			Help:        "Encoded bytes published",
			ConstLabels: labels,
		}, []string{"kind"}),
	}

	if err := registry.RegisterCounterVec(name, "chunks", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "bytes", m.bytes); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *publisherMetrics) recordPublished(kind string, size int) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind).Inc()
	m.bytes.WithLabelValues(kind).Add(float64(size))
}
