package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/component/flowgraph"
	"github.com/c360/mspikes/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

func TestLoader_YAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
toolchain: spk_extract
params:
  input:
    file: rec.db
    chunk_size: 100
    channels: ["^pen"]
log:
  level: debug
metrics:
  port: 9090
`)
	cfg, err := newTestLoader(nil).LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "spk_extract", cfg.Toolchain)
	assert.Equal(t, "rec.db", cfg.Params["input"]["file"])
	assert.EqualValues(t, 100, cfg.Params["input"]["chunk_size"])
	assert.Equal(t, []any{"^pen"}, cfg.Params["input"]["channels"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "defaults survive")
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoader_Layers(t *testing.T) {
	base := writeFile(t, "base.json", `{
		"definition": "a = rand_samples()\nb = chunk_log(a)",
		"params": {"b": {"path": "base.jsonl", "format": "json"}},
		"nats": {"url": "nats://base:4222"}
	}`)
	site := writeFile(t, "site.yml", `
params:
  b:
    path: site.jsonl
nats:
  client_name: rig-3
  tls:
    ca_files: [lab-ca.pem]
    min_version: "1.3"
`)
	l := newTestLoader(nil)
	l.AddLayer(base)
	l.AddLayer(site)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "site.jsonl", cfg.Params["b"]["path"])
	assert.Equal(t, "json", cfg.Params["b"]["format"], "deep merge keeps base keys")
	assert.Equal(t, "nats://base:4222", cfg.NATS.URL)
	assert.Equal(t, "rig-3", cfg.NATS.ClientName)
	assert.Equal(t, 10, cfg.NATS.MaxReconnects)
	assert.Equal(t, []string{"lab-ca.pem"}, cfg.NATS.TLS.CAFiles)
	assert.True(t, cfg.NATS.TLS.Enabled())
}

func TestLoader_NoLayers(t *testing.T) {
	cfg, err := newTestLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoader_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", "x.json", `{"toolchian": "spk_extract"}`},
		{"bad log level", "x.yaml", "log:\n  level: loud\n"},
		{"port as string", "x.json", `{"metrics": {"port": "9090"}}`},
		{"port out of range", "x.json", `{"metrics": {"port": 70000}}`},
		{"relative metrics path", "x.json", `{"metrics": {"path": "metrics"}}`},
		{"params not an object", "x.json", `{"params": {"input": 3}}`},
		{"bad node name", "x.json", `{"params": {"my-node": {}}}`},
		{"unknown toolchain", "x.json", `{"toolchain": "nope"}`},
		{"toolchain and definition", "x.json", `{"toolchain": "spk_demo", "definition": "a = rand_samples()"}`},
		{"malformed json", "x.json", `{"log": {"level": "info"}`},
		{"malformed yaml", "x.yaml", "log: [\n"},
		{"wrong extension", "x.txt", `{}`},
		{"tls cert without key", "x.yaml", "nats:\n  tls:\n    cert_file: client.pem\n"},
		{"tls old version", "x.json", `{"nats": {"tls": {"min_version": "1.0"}}}`},
		{"username without password", "x.yaml", "nats:\n  username: lab\n"},
		{"token and username", "x.json", `{"nats": {"token": "t", "username": "u", "password": "p"}}`},
		{"bad duration", "x.json", `{"nats": {"ping_interval": "often"}}`},
		{"negative duration", "x.json", `{"nats": {"drain_timeout": "-1s"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := newTestLoader(nil).LoadFile(path)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := newTestLoader(nil).LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})
}

func TestLoader_Env(t *testing.T) {
	path := writeFile(t, "run.json", `{"toolchain": "spk_demo", "log": {"level": "debug"}}`)

	cfg, err := newTestLoader(map[string]string{
		"MSPIKES_LOG_LEVEL":    "warn",
		"MSPIKES_LOG_FORMAT":   "json",
		"MSPIKES_METRICS_PORT": "9100",
		"MSPIKES_NATS_URL":     "nats://env:4222",
		"MSPIKES_TOOLCHAIN":    "",
	}).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, "spk_demo", cfg.Toolchain, "empty variables are ignored")

	t.Run("bad port", func(t *testing.T) {
		_, err := newTestLoader(map[string]string{"MSPIKES_METRICS_PORT": "ninety"}).Load()
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("overrides are validated", func(t *testing.T) {
		_, err := newTestLoader(map[string]string{"MSPIKES_LOG_FORMAT": "xml"}).Load()
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("null byte", func(t *testing.T) {
		_, err := newTestLoader(map[string]string{"MSPIKES_NATS_TOKEN": "a\x00b"}).Load()
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})
}

func TestConfig_Nodes(t *testing.T) {
	cfg := Default()
	cfg.Toolchain = "spk_extract"
	cfg.Set("input", "file", "rec.db")
	cfg.Set("spikes", "thresh_rel", 6.0)

	defs, err := cfg.Nodes()
	require.NoError(t, err)
	require.Len(t, defs, 4)
	assert.Equal(t, "input", defs[0].Name)
	assert.Equal(t, "rec.db", defs[0].Params["file"])
	assert.Equal(t, 6.0, defs[2].Params["thresh_rel"])
	assert.Equal(t, true, defs[3].Params["create"], "toolchain parameters kept")

	t.Run("unknown node", func(t *testing.T) {
		bad := cfg.Clone()
		bad.Set("inptu", "file", "x")
		_, err := bad.Nodes()
		assert.ErrorIs(t, err, errors.ErrDefinition)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("clone is independent", func(t *testing.T) {
		c := cfg.Clone()
		c.Set("input", "file", "other.db")
		assert.Equal(t, "rec.db", cfg.Params["input"]["file"])
	})

	t.Run("no graph", func(t *testing.T) {
		_, err := Default().Nodes()
		assert.ErrorIs(t, err, errors.ErrDefinition)
	})

	t.Run("definition wins when set", func(t *testing.T) {
		c := Default()
		c.Definition = "src = rand_samples(seed=3)"
		defs, err := c.Nodes()
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "rand_samples", defs[0].Type)
	})

	t.Run("bad definition", func(t *testing.T) {
		c := Default()
		c.Definition = "src = rand_samples(("
		_, err := c.Nodes()
		assert.ErrorIs(t, err, errors.ErrDefinition)
	})
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		in    string
		node  string
		key   string
		value any
	}{
		{"input.file=rec.db", "input", "file", "rec.db"},
		{"input.file=/data/rec.db", "input", "file", "/data/rec.db"},
		{`input.file="quoted"`, "input", "file", "quoted"},
		{"spikes.thresh_rel=4.5", "spikes", "thresh_rel", 4.5},
		{"spikes.thresh=-30", "spikes", "thresh", int64(-30)},
		{"input.use_timestamp=True", "input", "use_timestamp", true},
		{"input.times=[0, 1.5]", "input", "times", []any{int64(0), 1.5}},
		{"split.stop=None", "split", "stop", nil},
		{" out.path = a b ", "out", "path", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			node, key, value, err := ParseSet(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.node, node)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}

	for _, bad := range []string{"input.file", "file=rec.db", ".file=x", "input.=x"} {
		t.Run("reject "+bad, func(t *testing.T) {
			_, _, _, err := ParseSet(bad)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}

	t.Run("apply", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.ApplySets([]string{"a.x=1", "a.y=two", "b.z=False"}))
		assert.Equal(t, map[string]map[string]any{
			"a": {"x": int64(1), "y": "two"},
			"b": {"z": false},
		}, cfg.Params)
		assert.Error(t, cfg.ApplySets([]string{"broken"}))
	})
}

func TestToolchains(t *testing.T) {
	all := Toolchains()
	require.NotEmpty(t, all)
	for i, tc := range all {
		if i > 0 {
			assert.Less(t, all[i-1].Name, tc.Name)
		}
		t.Run(tc.Name, func(t *testing.T) {
			assert.NotEmpty(t, tc.Description)
			defs, err := flowgraph.Parse(tc.Definition)
			require.NoError(t, err)
			assert.NoError(t, flowgraph.Validate(defs))
			found, ok := LookupToolchain(tc.Name)
			assert.True(t, ok)
			assert.Equal(t, tc, found)
		})
	}
	_, ok := LookupToolchain("missing")
	assert.False(t, ok)
}

func TestNATSConfig_Timing(t *testing.T) {
	timing, err := NATSConfig{ReconnectWait: "500ms", DrainTimeout: "10s"}.Timing()
	require.NoError(t, err)
	assert.Equal(t, NATSTiming{ReconnectWait: 500 * time.Millisecond, DrainTimeout: 10 * time.Second}, timing)

	timing, err = NATSConfig{}.Timing()
	require.NoError(t, err)
	assert.Zero(t, timing)
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": "[[[{{{"}`)))
	assert.Error(t, validateJSONDepth([]byte(strings.Repeat("[", maxJSONDepth+1)+strings.Repeat("]", maxJSONDepth+1))))
	assert.Error(t, validateJSONDepth([]byte(`{"a": 1}}`)))
	assert.Error(t, validateJSONDepth([]byte(`{"a": [1}`)))
}

func TestSchema(t *testing.T) {
	assert.Contains(t, string(Schema()), `"additionalProperties": false`)
}
