package config

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/c360/mspikes/component/flowgraph"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/pkg/tlsutil"
)

// Config is the run configuration: which graph to build, per-node parameter
// overrides and the process-wide logging, metrics and NATS settings.
type Config struct {
	Version string `json:"version,omitempty"`
	// Toolchain names a predefined graph. Mutually exclusive with Definition.
	Toolchain string `json:"toolchain,omitempty"`
	// Definition is a graph in the definition language.
	Definition string `json:"definition,omitempty"`
	// Params overrides keyword arguments per node: params[node][key].
	Params map[string]map[string]any `json:"params,omitempty"`

	Log     LogConfig     `json:"log"`
	Metrics MetricsConfig `json:"metrics"`
	NATS    NATSConfig    `json:"nats"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// MetricsConfig configures the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// NATSConfig configures the connection shared by nats_publisher nodes that
// do not name their own url. An empty URL means no shared connection.
type NATSConfig struct {
	URL           string `json:"url,omitempty"`
	ClientName    string `json:"client_name,omitempty"`
	MaxReconnects int    `json:"max_reconnects"`
	Token         string `json:"token,omitempty"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	// Durations use time.ParseDuration syntax. Empty keeps the client default.
	ReconnectWait string `json:"reconnect_wait,omitempty"`
	PingInterval  string `json:"ping_interval,omitempty"`
	DrainTimeout  string `json:"drain_timeout,omitempty"`
	// TLS secures the connection when any field is set.
	TLS tlsutil.ClientConfig `json:"tls,omitempty"`
}

// NATSTiming holds the parsed NATS durations. Zero means unset.
type NATSTiming struct {
	ReconnectWait time.Duration
	PingInterval  time.Duration
	DrainTimeout  time.Duration
}

// Timing parses the duration settings.
func (n NATSConfig) Timing() (NATSTiming, error) {
	var t NATSTiming
	for _, f := range []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"reconnect_wait", n.ReconnectWait, &t.ReconnectWait},
		{"ping_interval", n.PingInterval, &t.PingInterval},
		{"drain_timeout", n.DrainTimeout, &t.DrainTimeout},
	} {
		if f.val == "" {
			continue
		}
		d, err := time.ParseDuration(f.val)
		if err != nil || d <= 0 {
			return NATSTiming{}, invalid("nats %s %q is not a positive duration", f.key, f.val)
		}
		*f.dst = d
	}
	return t, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Path: "/metrics"},
		NATS:    NATSConfig{ClientName: "mspikes", MaxReconnects: 10},
	}
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "check config")
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Toolchain != "" && c.Definition != "" {
		return invalid("toolchain and definition are mutually exclusive")
	}
	if c.Toolchain != "" {
		if _, ok := LookupToolchain(c.Toolchain); !ok {
			return invalid("unknown toolchain %q", c.Toolchain)
		}
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return invalid("log level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log format %q", c.Log.Format)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalid("metrics port %d out of range", c.Metrics.Port)
	}
	if c.NATS.MaxReconnects < -1 {
		return invalid("nats max_reconnects must be -1 or more")
	}
	if (c.NATS.Username == "") != (c.NATS.Password == "") {
		return invalid("nats username and password must be set together")
	}
	if c.NATS.Token != "" && c.NATS.Username != "" {
		return invalid("nats token and username are mutually exclusive")
	}
	if _, err := c.NATS.Timing(); err != nil {
		return err
	}
	if err := c.NATS.TLS.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "check nats tls")
	}
	return nil
}

// Set overrides one keyword argument of a node.
func (c *Config) Set(node, key string, value any) {
	if c.Params == nil {
		c.Params = make(map[string]map[string]any)
	}
	if c.Params[node] == nil {
		c.Params[node] = make(map[string]any)
	}
	c.Params[node][key] = value
}

// Source returns the definition text of the selected graph.
func (c *Config) Source() (string, error) {
	switch {
	case c.Definition != "":
		return c.Definition, nil
	case c.Toolchain != "":
		tc, ok := LookupToolchain(c.Toolchain)
		if !ok {
			return "", errors.WrapFatal(fmt.Errorf("%w: unknown toolchain %q", errors.ErrDefinition, c.Toolchain),
				"Config", "Source", "look up toolchain")
		}
		return tc.Definition, nil
	}
	return "", errors.WrapFatal(fmt.Errorf("%w: no toolchain or definition given", errors.ErrDefinition),
		"Config", "Source", "select graph")
}

// Nodes parses the selected graph and applies the parameter overrides.
func (c *Config) Nodes() ([]flowgraph.NodeDef, error) {
	src, err := c.Source()
	if err != nil {
		return nil, err
	}
	defs, err := flowgraph.Parse(src)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
	}
	for _, node := range slices.Sorted(maps.Keys(c.Params)) {
		i, ok := index[node]
		if !ok {
			return nil, errors.WrapFatal(fmt.Errorf("%w: parameters given for unknown node %q", errors.ErrDefinition, node),
				"Config", "Nodes", "apply parameters")
		}
		if defs[i].Params == nil {
			defs[i].Params = make(map[string]any)
		}
		maps.Copy(defs[i].Params, c.Params[node])
	}
	return defs, nil
}

// Clone returns a deep copy of the parameter overrides and a copy of the rest.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]map[string]any, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = maps.Clone(v)
		}
	}
	out.NATS.TLS.CAFiles = slices.Clone(c.NATS.TLS.CAFiles)
	return &out
}
