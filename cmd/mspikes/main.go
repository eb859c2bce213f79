// Package main implements the mspikes command: it builds a processing graph
// from a predefined toolchain, a definition or a run configuration, and pulls
// data through it until the sources are exhausted or the process is signalled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/component/flowgraph"
	"github.com/c360/mspikes/componentregistry"
	"github.com/c360/mspikes/config"
	"github.com/c360/mspikes/health"
	"github.com/c360/mspikes/metric"
	"github.com/c360/mspikes/natsclient"
	"github.com/c360/mspikes/pkg/retry"
	"github.com/c360/mspikes/pkg/tlsutil"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "mspikes"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Run failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}

	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return fmt.Errorf("register components: %w", err)
	}
	if cli.List {
		printList(stdout, registry)
		return nil
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	logger := setupLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	defs, err := cfg.Nodes()
	if err != nil {
		return err
	}
	if cli.Validate {
		if err := flowgraph.Validate(defs); err != nil {
			return err
		}
		logger.Info("Configuration is valid", "nodes", len(defs))
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return execute(ctx, cfg, defs, registry, logger)
}

// loadConfig reads the run configuration and applies command-line overrides.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cli.ConfigPath != "" {
		loader.AddLayer(cli.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	switch {
	case cli.Toolchain != "":
		cfg.Toolchain, cfg.Definition = cli.Toolchain, ""
	case cli.Definition != "":
		cfg.Toolchain, cfg.Definition = "", cli.Definition
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if cli.MetricsPort >= 0 {
		cfg.Metrics.Port = cli.MetricsPort
	}
	if err := cfg.ApplySets(cli.Sets); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// execute sets up metrics and NATS, builds the graph and runs it.
func execute(ctx context.Context, cfg *config.Config, defs []flowgraph.NodeDef,
	registry *component.Registry, logger *slog.Logger) error {
	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	if cfg.Metrics.Port > 0 {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		server.SetHealthCheck(func() health.Status { return monitor.AggregateHealth(appName) })
		if err := server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Serving metrics", "address", server.Address())
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = server.Stop(stopCtx)
		}()
	}

	deps := component.NewDependencies(logger, metricsRegistry)
	deps.Containers = componentregistry.Opener()
	deps.Health = monitor

	if cfg.NATS.URL != "" {
		client, err := connectNATS(ctx, cfg.NATS, logger, metricsRegistry)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := client.Close(closeCtx); err != nil {
				logger.Warn("Closing NATS connection", "error", err)
			}
		}()
		deps.Publisher = client
	}

	g, err := flowgraph.Build(defs, registry, deps)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	return g.Run(ctx)
}

// connectNATS creates the connection shared by nats_publisher nodes.
func connectNATS(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger,
	registry *metric.MetricsRegistry) (*natsclient.Client, error) {
	timing, err := cfg.Timing()
	if err != nil {
		return nil, err
	}
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithClientName(cfg.ClientName),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithMetrics(registry),
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if timing.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(timing.ReconnectWait))
	}
	if timing.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(timing.PingInterval))
	}
	if timing.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(timing.DrainTimeout))
	}
	if cfg.TLS.Enabled() {
		tlsConfig, err := tlsutil.LoadClientConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("load NATS TLS config: %w", err)
		}
		opts = append(opts, natsclient.WithTLS(tlsConfig))
	}
	client, err := natsclient.NewClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "url", cfg.URL, "tls", cfg.TLS.Enabled())
	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := retry.Do(connCtx, retry.Startup(), client.Connect); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return client, nil
}

func printList(w io.Writer, registry *component.Registry) {
	tw := tabwriter.NewWriter(w, 0, 4, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "predefined toolchains:")
	for _, tc := range config.Toolchains() {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", tc.Name, tc.Description)
	}
	_, _ = fmt.Fprintln(tw, "\nnode types:")
	for _, r := range registry.ListTypes() {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.Name, r.Type, r.Description)
	}
	_ = tw.Flush()
}
