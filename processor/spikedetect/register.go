package spikedetect

import (
	"encoding/json"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// NewProcessor builds a spike_extract node: one Extractor per channel.
func NewProcessor(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "SpikeExtract", "NewProcessor", "decode config")
	}

	metrics, err := newDetectMetrics(deps.MetricsRegistry, name)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize spike_extract metrics", "error", err)
		metrics = nil
	}

	return component.NewParallel(name, func(key string) (component.Node, error) {
		return NewExtractor(name+"."+key, cfg, deps, metrics), nil
	},
		component.WithDispatchTags(chunk.TagSamples, chunk.TagScalar),
		component.WithLogger(deps.GetLogger()),
	), nil
}

// Register registers the spike_extract node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "spike_extract",
		Factory:     NewProcessor,
		Type:        component.TypeProcessor,
		Description: "Detect threshold crossings and extract spike waveforms",
		Version:     "1.0.0",
	})
}
