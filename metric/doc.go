// Package metric provides Prometheus-based metrics for mspikes pipelines.
//
// A MetricsRegistry owns a private Prometheus registry holding the core
// pipeline metrics (chunks received and emitted per node, node errors by
// class, run status and duration) plus the Go runtime and process collectors.
// Nodes register their own vectors through the MetricsRegistrar methods,
// keyed by node name so duplicate registration is reported as an invalid
// error rather than a panic.
//
// Recorder helpers on *Metrics are nil-safe, so nodes built without a
// registry (tests, library use) can call them unconditionally:
//
//	m := deps.MetricsRegistry.CoreMetrics() // nil when no registry
//	m.RecordReceived("spikes", "sampled")
//
// Server exposes the registry over HTTP:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	defer server.Stop(ctx)
//
// The server also answers /health: 200 OK by default, or the JSON status
// returned by the function given to SetHealthCheck (503 when unhealthy).
package metric
