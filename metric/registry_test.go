package metric

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/health"
)

func gatherNames(t *testing.T, r *MetricsRegistry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.CoreMetrics())

	registry.CoreMetrics().RecordReceived("detector", "sampled")
	registry.CoreMetrics().SetRunStatus(RunRunning)

	families := gatherNames(t, registry)
	assert.Contains(t, families, "mspikes_node_chunks_received_total")
	assert.Contains(t, families, "mspikes_run_status")
	assert.Contains(t, families, "go_goroutines")
}

func TestMetricsRegistry_RegisterCounterVec(t *testing.T) {
	registry := NewMetricsRegistry()

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_spikes_total",
		Help: "A test counter",
	}, []string{"channel"})

	require.NoError(t, registry.RegisterCounterVec("detector", "spikes", vec))
	vec.WithLabelValues("pen1").Add(3)

	families := gatherNames(t, registry)
	mf, ok := families["test_spikes_total"]
	require.True(t, ok)
	assert.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())

	t.Run("duplicate key", func(t *testing.T) {
		err := registry.RegisterCounterVec("detector", "spikes", vec)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("prometheus conflict", func(t *testing.T) {
		other := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_spikes_total",
			Help: "A test counter",
		}, []string{"channel"})
		err := registry.RegisterCounterVec("other", "spikes", other)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
	})

	t.Run("unregister", func(t *testing.T) {
		assert.True(t, registry.Unregister("detector", "spikes"))
		assert.False(t, registry.Unregister("detector", "spikes"))
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReceived("n", "k")
		m.RecordEmitted("n", "k")
		m.RecordError("n", "fatal")
		m.RecordPulled("src")
		m.SetRunStatus(RunFailed)
		m.ObserveRun(1)
	})

	var r *MetricsRegistry
	assert.Nil(t, r.CoreMetrics())
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordPulled("input")
	server := NewServer(0, "", registry)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "mspikes_source_records_pulled_total"))

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(string(body)))
	require.NoError(t, err)
	pulled, ok := families["mspikes_source_records_pulled_total"]
	require.True(t, ok)
	require.Len(t, pulled.GetMetric(), 1)
	assert.Equal(t, 1.0, pulled.GetMetric()[0].GetCounter().GetValue())

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_HealthCheck(t *testing.T) {
	server := NewServer(0, "", NewMetricsRegistry())
	monitor := health.NewMonitor()
	server.SetHealthCheck(func() health.Status { return monitor.AggregateHealth("mspikes") })

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	get := func() (int, health.Status) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		var status health.Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		return resp.StatusCode, status
	}

	monitor.Running("input", "pulling")
	code, status := get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.Healthy, status.State)
	require.Len(t, status.SubStatuses, 1)
	assert.Equal(t, "input", status.SubStatuses[0].Name)

	monitor.Fail("pipeline", assert.AnError)
	code, status = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.Unhealthy, status.State)
}

func TestServer_StartStop(t *testing.T) {
	server := NewServer(0, "/metrics", NewMetricsRegistry())
	require.NoError(t, server.Start())
	assert.Error(t, server.Start(), "second start must fail")
	assert.NotEqual(t, "http://localhost:0/metrics", server.Address())
	require.NoError(t, server.Stop(context.Background()))
	require.NoError(t, server.Stop(context.Background()))
}
