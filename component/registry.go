package component

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/c360/mspikes/errors"
)

// Node roles used in registrations
const (
	TypeSource    = "source"
	TypeProcessor = "processor"
	TypeSink      = "sink"
)

// Factory creates a component instance from its configuration. The factory
// receives the instance name, the raw JSON parameters from the graph
// definition and the run dependencies. Factories do no I/O beyond opening
// the resources the component owns.
type Factory func(name string, rawConfig json.RawMessage, deps Dependencies) (Component, error)

// Registration holds a factory and its metadata
type Registration struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Factory     Factory `json:"-"`
}

// RegistrationConfig provides the arguments for RegisterWithConfig.
type RegistrationConfig struct {
	Name        string  // Type name used in graph definitions (e.g., "spike_extract")
	Factory     Factory // Factory function to create instances
	Type        string  // Node role: "source", "processor" or "sink"
	Description string  // Human-readable description
	Version     string  // Node version (semver recommended)
}

// Registry maps node type names to factories. It is safe for concurrent use.
type Registry struct {
	factories map[string]*Registration
	mu        sync.RWMutex
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
	}
}

// RegisterWithConfig registers a factory described by config
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	return r.RegisterFactory(config.Name, &Registration{
		Name:        config.Name,
		Type:        config.Type,
		Description: config.Description,
		Version:     config.Version,
		Factory:     config.Factory,
	})
}

// RegisterFactory registers a factory under name. Registering a name twice is an error.
func (r *Registry) RegisterFactory(name string, registration *Registration) error {
	if err := ValidateName(name); err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory name validation")
	}
	if registration == nil || registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}
	if registration.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "node type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		msg := fmt.Errorf("factory '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}
	r.factories[name] = registration
	return nil
}

// Create builds an instance named name of the registered type typeName.
func (r *Registry) Create(typeName, name string, rawConfig json.RawMessage, deps Dependencies) (Component, error) {
	if err := ValidateName(name); err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "instance name validation")
	}
	registration, ok := r.GetFactory(typeName)
	if !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %q", errors.ErrUnknownType, typeName),
			"Registry", "Create", "factory lookup")
	}
	comp, err := registration.Factory(name, rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("build %s %q", typeName, name))
	}
	return comp, nil
}

// GetFactory returns the registration for typeName
func (r *Registry) GetFactory(typeName string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[typeName]
	return reg, ok
}

// ListTypes returns all registrations sorted by name
func (r *Registry) ListTypes() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.factories))
	for _, reg := range r.factories {
		out = append(out, *reg)
	}
	slices.SortFunc(out, func(a, b Registration) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}
