package natspub

import (
	"context"
	"encoding/json"

	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// NewSink builds a nats_publisher node.
func NewSink(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "NATSPublisher", "NewSink", "decode config")
	}
	return NewPublisher(context.Background(), name, cfg, deps)
}

// Register registers the nats_publisher node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "nats_publisher",
		Factory:     NewSink,
		Type:        component.TypeSink,
		Description: "Publish chunks as JSON to NATS subjects",
		Version:     "1.0.0",
	})
}
