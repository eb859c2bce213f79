package spikefeatures

import (
	"encoding/json"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// NewProcessor builds a spike_features node: one Aligner per channel.
func NewProcessor(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "SpikeFeatures", "NewProcessor", "decode config")
	}

	metrics, err := newFeatureMetrics(deps.MetricsRegistry, name)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize spike_features metrics", "error", err)
		metrics = nil
	}

	return component.NewParallel(name, func(key string) (component.Node, error) {
		return NewAligner(name+"."+key, cfg, deps, metrics), nil
	},
		component.WithDispatchTags(chunk.TagEvents),
		component.WithLogger(deps.GetLogger()),
	), nil
}

// Register registers the spike_features node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "spike_features",
		Factory:     NewProcessor,
		Type:        component.TypeProcessor,
		Description: "Align spike waveforms and compute principal component features",
		Version:     "1.0.0",
	})
}
