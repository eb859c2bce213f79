package spikefeatures

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// featureMetrics holds Prometheus metrics for one spike_features node.
type featureMetrics struct {
	aligned   *prometheus.CounterVec // by channel
	dropped   *prometheus.CounterVec // by channel
	fallbacks prometheus.Counter
}

func newFeatureMetrics(registry *metric.MetricsRegistry, name string) (*featureMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"node": name}
	m := &featureMetrics{
		aligned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "spike_features",
			Name:        "aligned_total",
			Help:        "Spike waveforms aligned and projected",
			ConstLabels: labels,
		}, []string{"channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "spike_features",
			Name:        "dropped_total",
			Help:        "Spike waveforms dropped for excessive peak shift",
			ConstLabels: labels,
		}, []string{"channel"}),
	}
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metric.Namespace,
		Subsystem:   "spike_features",
		Name:        "svd_fallbacks_total",
		Help:        "Principal component bases computed from the transposed matrix",
		ConstLabels: labels,
	}, nil)

	if err := registry.RegisterCounterVec(name, "aligned", m.aligned); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "dropped", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "svd_fallbacks", fallbacks); err != nil {
		return nil, err
	}
	m.fallbacks = fallbacks.WithLabelValues()
	return m, nil
}

func (m *featureMetrics) recordAligned(channel string, kept, dropped int) {
	if m == nil {
		return
	}
	m.aligned.WithLabelValues(channel).Add(float64(kept))
	m.dropped.WithLabelValues(channel).Add(float64(dropped))
}

func (m *featureMetrics) recordFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}
