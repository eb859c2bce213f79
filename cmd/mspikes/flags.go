package main

import (
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
)

// CLIConfig holds command-line configuration. Empty strings and negative
// ports mean "not given"; the run configuration then decides.
type CLIConfig struct {
	Toolchain   string
	Definition  string
	ConfigPath  string
	Sets        []string
	LogLevel    string
	LogFormat   string
	MetricsPort int
	List        bool
	Validate    bool
	ShowVersion bool
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.Toolchain, "t", "", "Use a predefined toolchain (see -list)")
	fs.StringVar(&cfg.Definition, "T", "", "Define a toolchain, e.g. 'a = rand_samples(); b = chunk_log(a, path=\"x.jsonl\")'")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to a JSON or YAML run configuration (env: MSPIKES_* overrides)")
	fs.StringVar(&cfg.ConfigPath, "c", "", "Path to a JSON or YAML run configuration")
	fs.Var((*stringList)(&cfg.Sets), "set", "Override a node parameter as node.key=value (repeatable)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env: MSPIKES_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "", "Log format: json, text (env: MSPIKES_LOG_FORMAT)")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", -1, "Prometheus metrics port, 0 to disable (env: MSPIKES_METRICS_PORT)")
	fs.BoolVar(&cfg.List, "list", false, "List toolchains and node types")
	fs.BoolVar(&cfg.Validate, "validate", false, "Check the configuration and graph definition and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		printDetailedHelp(fs, stderr)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, validateFlags(cfg)
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.Toolchain != "" && cfg.Definition != "" {
		return fmt.Errorf("-t and -T are mutually exclusive")
	}
	if cfg.LogLevel != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - process time-varying data

Usage: %s [-t toolchain | -T definition | -config file] [-set node.key=value ...] [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Extract spikes from a recording
  %[1]s -t spk_extract -set input.file=rec.db -set output.file=spikes.db

  # Run a custom graph with debug logging
  %[1]s -T 'src = spike_train(); log = chunk_log(src, path="out.jsonl")' -log-level=debug

  # Run from a configuration file with metrics on :9090
  %[1]s -config run.yaml -metrics-port 9090

Version: %[2]s
`, appName, Version)
}
