package sqlitestore

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// storeMetrics holds Prometheus metrics for one store.
type storeMetrics struct {
	registry *metric.MetricsRegistry
	service  string

	batches     *prometheus.CounterVec   // by outcome
	batchOps    *prometheus.CounterVec   // by op type
	readLatency *prometheus.HistogramVec // by read kind
}

// newStoreMetrics registers metrics for the store at path. A nil registry
// disables metrics.
func newStoreMetrics(registry *metric.MetricsRegistry, path string) (*storeMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"path": path}
	m := &storeMetrics{
		registry: registry,
		service:  "sqlitestore:" + path,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "sqlitestore",
			Name:        "batches_total",
			Help:        "Write batches applied, by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		batchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "sqlitestore",
			Name:        "ops_total",
			Help:        "Operations committed, by type",
			ConstLabels: labels,
		}, []string{"op"}),
		readLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "sqlitestore",
			Name:        "read_duration_seconds",
			Help:        "Read latency",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"kind"}),
	}

	if err := registry.RegisterCounterVec(m.service, "batches", m.batches); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(m.service, "ops", m.batchOps); err != nil {
		registry.Unregister(m.service, "batches")
		return nil, err
	}
	if err := registry.RegisterHistogramVec(m.service, "read_latency", m.readLatency); err != nil {
		registry.Unregister(m.service, "batches")
		registry.Unregister(m.service, "ops")
		return nil, err
	}
	return m, nil
}

func (m *storeMetrics) recordBatch(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}

func (m *storeMetrics) recordOp(op string) {
	if m == nil {
		return
	}
	m.batchOps.WithLabelValues(op).Inc()
}

func (m *storeMetrics) observeRead(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.readLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *storeMetrics) unregister() {
	if m == nil {
		return
	}
	m.registry.Unregister(m.service, "batches")
	m.registry.Unregister(m.service, "ops")
	m.registry.Unregister(m.service, "read_latency")
}
