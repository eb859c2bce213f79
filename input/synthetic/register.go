package synthetic

import (
	"encoding/json"

	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

func newRandSource(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultRandConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "RandSamples", "NewSource", "decode config")
	}
	return NewRandSamples(name, cfg, deps), nil
}

func newSpikeSource(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultSpikeConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "SpikeTrain", "NewSource", "decode config")
	}
	return NewSpikeTrain(name, cfg, deps), nil
}

// Register registers the rand_samples and spike_train node types
func Register(registry *component.Registry) error {
	if err := registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "rand_samples",
		Factory:     newRandSource,
		Type:        component.TypeSource,
		Description: "Generate seeded normally distributed samples",
		Version:     "1.0.0",
	}); err != nil {
		return err
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "spike_train",
		Factory:     newSpikeSource,
		Type:        component.TypeSource,
		Description: "Generate noise with template spikes at a fixed period",
		Version:     "1.0.0",
	})
}
