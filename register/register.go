// Package register tracks the channel identities seen during a pipeline run.
//
// Sources record the properties of every channel they produce (uuid, units,
// datatype); sinks look them up when creating datasets. A register belongs to
// one run and is shared through component.Dependencies.
package register

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/mspikes/errors"
)

// Properties describes one channel.
type Properties struct {
	UUID     string
	Units    string
	DataType string
	Extra    map[string]string
}

// Register maps channel ids to their properties.
type Register struct {
	mu      sync.RWMutex
	entries map[string]Properties
	logger  *slog.Logger
}

// New creates an empty register.
func New(logger *slog.Logger) *Register {
	if logger == nil {
		logger = slog.Default()
	}
	return &Register{
		entries: make(map[string]Properties),
		logger:  logger.With("component", "register"),
	}
}

// Add records id. A missing UUID is generated. Adding an id twice is an error.
func (r *Register) Add(id string, props Properties) (Properties, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return Properties{}, errors.WrapInvalid(
			fmt.Errorf("%q has already been registered", id), "Register", "Add", "register channel")
	}
	if props.UUID == "" {
		props.UUID = uuid.NewString()
		r.logger.Info("Assigned channel uuid", "id", id, "uuid", props.UUID)
	} else {
		r.logger.Debug("Registered channel", "id", id, "uuid", props.UUID)
	}
	r.entries[id] = props
	return props, nil
}

// Ensure returns the properties for id, registering it with defaults if absent.
func (r *Register) Ensure(id string, defaults Properties) Properties {
	if props, ok := r.Get(id); ok {
		return props
	}
	props, err := r.Add(id, defaults)
	if err != nil {
		// lost a race with another Add for the same id
		props, _ = r.Get(id)
	}
	return props
}

// Has reports whether id is registered.
func (r *Register) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Get returns the properties for id.
func (r *Register) Get(id string) (Properties, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	props, ok := r.entries[id]
	return props, ok
}

// IDByUUID returns the first id (in sorted order) with the given uuid.
func (r *Register) IDByUUID(u string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if r.entries[id].UUID == u {
			return id, true
		}
	}
	return "", false
}
