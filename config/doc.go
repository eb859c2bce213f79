// Package config loads mspikes run configuration.
//
// A run configuration selects the graph to build, either a predefined
// toolchain or a definition in the graph language, plus per-node parameter
// overrides and the process-wide logging, metrics and NATS settings.
//
// # Loading
//
// Files may be JSON or YAML. Layers are merged in order, later layers
// overriding earlier ones key by key:
//
//	loader := config.NewLoader()
//	loader.AddLayer("base.yaml")
//	loader.AddLayer("site.json")
//	cfg, err := loader.Load()
//
// The merged document is checked against the embedded JSON schema (see
// Schema) before decoding. MSPIKES_* environment variables then override the
// file: MSPIKES_TOOLCHAIN, MSPIKES_DEFINITION, MSPIKES_LOG_LEVEL,
// MSPIKES_LOG_FORMAT, MSPIKES_METRICS_PORT, MSPIKES_METRICS_PATH,
// MSPIKES_NATS_URL and MSPIKES_NATS_TOKEN.
//
// # Example
//
//	toolchain: spk_extract
//	params:
//	  input:
//	    file: rec.db
//	    channels: ["^pen"]
//	  output:
//	    file: spikes.db
//	log:
//	  level: debug
//	metrics:
//	  port: 9090
//
// # Overrides
//
// Command-line overrides use node.key=value with values written as literals
// of the definition language (ParseSet). Nodes returns the parsed graph with
// every override applied; naming a node the graph lacks is a definition error.
package config
