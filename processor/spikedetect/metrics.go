package spikedetect

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mspikes/metric"
)

// detectMetrics holds Prometheus metrics for one spike_extract node.
type detectMetrics struct {
	spikes     *prometheus.CounterVec // by channel
	dropped    *prometheus.CounterVec // by reason: start, incomplete
	undetected *prometheus.CounterVec // chunks passed without a threshold
	resets     *prometheus.CounterVec // detector resets by cause
}

// newDetectMetrics creates and registers metrics for the node called name.
func newDetectMetrics(registry *metric.MetricsRegistry, name string) (*detectMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	labels := prometheus.Labels{"node": name}
	m := &detectMetrics{
		spikes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "spike_extract",
			Name:        "spikes_total",
			Help:        "Spike waveforms extracted",
			ConstLabels: labels,
		}, []string{"channel"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "spike_extract",
			Name:        "dropped_total",
			Help:        "Detected peaks whose window could not be extracted",
			ConstLabels: labels,
		}, []string{"reason"}),
		undetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "spike_extract",
			Name:        "undetected_chunks_total",
			Help:        "Sampled chunks passed through before a relative threshold was known",
			ConstLabels: labels,
		}, []string{"channel"}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "spike_extract",
			Name:        "resets_total",
			Help:        "Detector resets",
			ConstLabels: labels,
		}, []string{"cause"}),
	}

	if err := registry.RegisterCounterVec(name, "spikes", m.spikes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "dropped", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "undetected", m.undetected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "resets", m.resets); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *detectMetrics) recordSpikes(channel string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.spikes.WithLabelValues(channel).Add(float64(n))
}

func (m *detectMetrics) recordDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.WithLabelValues(reason).Add(float64(n))
}

func (m *detectMetrics) recordUndetected(channel string) {
	if m == nil {
		return
	}
	m.undetected.WithLabelValues(channel).Inc()
}

func (m *detectMetrics) recordReset(cause string) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(cause).Inc()
}
