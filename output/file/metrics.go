package file

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// logMetrics holds Prometheus metrics for one chunk_log node.
type logMetrics struct {
	records prometheus.Counter
	bytes   prometheus.Counter
	errors  prometheus.Counter
}

func newLogMetrics(registry *metric.MetricsRegistry, name string) (*logMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	opts := func(metricName, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "chunk_log",
			Name:        metricName,
			Help:        help,
			ConstLabels: prometheus.Labels{"node": name},
		}
	}
	records := prometheus.NewCounterVec(opts("records_total", "Records written"), nil)
	bytes := prometheus.NewCounterVec(opts("bytes_total", "Bytes written"), nil)
	errs := prometheus.NewCounterVec(opts("write_errors_total", "Failed writes"), nil)

	if err := registry.RegisterCounterVec(name, "records", records); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "bytes", bytes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "write_errors", errs); err != nil {
		return nil, err
	}
	return &logMetrics{
		records: records.WithLabelValues(),
		bytes:   bytes.WithLabelValues(),
		errors:  errs.WithLabelValues(),
	}, nil
}

func (m *logMetrics) recordWritten(n int) {
	if m == nil {
		return
	}
	m.records.Inc()
	m.bytes.Add(float64(n))
}

func (m *logMetrics) recordError() {
	if m == nil {
		return
	}
	m.errors.Inc()
}
