package component

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/mspikes/health"
	"github.com/c360/mspikes/metric"
	"github.com/c360/mspikes/register"
	"github.com/c360/mspikes/storage/container"
)

// Publisher delivers encoded chunks to a message broker. *natsclient.Client
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Dependencies provides the external collaborators a node may need.
// Every field may be left nil; accessors supply defaults.
type Dependencies struct {
	Logger          *slog.Logger            // Structured logger (defaults to slog.Default())
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Register        *register.Register      // Channel register shared by sources and sinks
	Containers      container.Opener        // Opens containers by URI for readers and writers
	Publisher       Publisher               // Broker connection for publishing sinks (can be nil)
	Clock           func() time.Time        // Wall clock (defaults to time.Now)
	Health          *health.Monitor         // Run health reported by the graph (can be nil)
}

// NewDependencies returns dependencies with a fresh register and an in-memory
// container opener.
func NewDependencies(logger *slog.Logger, registry *metric.MetricsRegistry) Dependencies {
	if logger == nil {
		logger = slog.Default()
	}
	return Dependencies{
		Logger:          logger,
		MetricsRegistry: registry,
		Register:        register.New(logger),
		Containers:      container.NewOpener(),
	}
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}

// Now returns the current time from the configured clock
func (d *Dependencies) Now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// CoreMetrics returns the shared pipeline metrics, or nil without a registry
func (d *Dependencies) CoreMetrics() *metric.Metrics {
	return d.MetricsRegistry.CoreMetrics()
}
