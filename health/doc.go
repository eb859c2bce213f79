// Package health tracks the health of a running pipeline.
//
// The flowgraph reports each root source as it is pulled, and the run itself
// under the "pipeline" name. A failing record marks the run unhealthy with a
// sanitized error message. The metrics server exposes the aggregate on
// /health:
//
//	monitor := health.NewMonitor()
//	deps.Health = monitor
//	server.SetHealthCheck(func() health.Status {
//	    return monitor.AggregateHealth("mspikes")
//	})
//
// A nil *Monitor accepts every call and reports nothing.
package health
