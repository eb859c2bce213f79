package natsclient

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// clientMetrics holds Prometheus metrics for the NATS connection.
type clientMetrics struct {
	published *prometheus.CounterVec // by mode
	bytes     *prometheus.CounterVec // by mode
	errors    *prometheus.CounterVec // by operation
	status    *prometheus.GaugeVec
}

func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &clientMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "published_total",
			Help:      "Messages published to NATS",
		}, []string{"mode"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "published_bytes_total",
			Help:      "Payload bytes published to NATS",
		}, []string{"mode"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "errors_total",
			Help:      "Failed NATS operations",
		}, []string{"operation"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "nats",
			Name:      "connection_status",
			Help:      "Connection status (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=circuit open)",
		}, nil),
	}

	if err := registry.RegisterCounterVec("natsclient", "published", m.published); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("natsclient", "published_bytes", m.bytes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("natsclient", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec("natsclient", "connection_status", m.status); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *clientMetrics) recordPublished(mode string, size int) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(mode).Inc()
	m.bytes.WithLabelValues(mode).Add(float64(size))
}

func (m *clientMetrics) recordError(op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(op).Inc()
}

func (m *clientMetrics) setStatus(s ConnectionStatus) {
	if m == nil {
		return
	}
	m.status.WithLabelValues().Set(float64(s))
}
