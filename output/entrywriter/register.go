package entrywriter

import (
	"context"
	"encoding/json"

	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// NewSink builds an entry_writer node.
func NewSink(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "EntryWriter", "NewSink", "decode config")
	}
	return NewWriter(context.Background(), name, cfg, deps)
}

// Register registers the entry_writer node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "entry_writer",
		Factory:     NewSink,
		Type:        component.TypeSink,
		Description: "Write chunks into the entries of a container",
		Version:     "1.0.0",
	})
}
