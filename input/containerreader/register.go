package containerreader

import (
	"context"
	"encoding/json"

	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// NewSource builds a container_reader node.
func NewSource(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "ContainerReader", "NewSource", "decode config")
	}
	return NewReader(context.Background(), name, cfg, deps)
}

// Register registers the container_reader node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "container_reader",
		Factory:     NewSource,
		Type:        component.TypeSource,
		Description: "Read entries and datasets from a container in time order",
		Version:     "1.0.0",
	})
}
