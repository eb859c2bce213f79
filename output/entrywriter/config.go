package entrywriter

import (
	"fmt"

	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/storage/container"
)

// Config holds the entry_writer parameters.
type Config struct {
	// File is the container path, or mem:<name> for an in-process container.
	File string `json:"file"`
	// Backend overrides the storage backend implied by File.
	Backend string `json:"backend,omitempty"`
	// AutoEntry is the base name for entries created for data that arrives
	// before any entry or after a gap. Empty disables automatic entries
	// before the first structure chunk.
	AutoEntry string `json:"auto_entry,omitempty"`
	// SamplingRate is the clock rate recorded in a new container.
	SamplingRate int64 `json:"sampling_rate,omitempty"`
	// Create allows the container to be created.
	Create bool `json:"create"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{Create: true}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.File == "" {
		return invalid("file is required")
	}
	switch c.Backend {
	case "", container.BackendSQLite, container.BackendMemory:
	default:
		return invalid(fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if c.SamplingRate < 0 {
		return invalid("sampling_rate must not be negative")
	}
	if c.AutoEntry != "" {
		if base, n := splitName(c.AutoEntry); n >= 0 {
			return invalid(fmt.Sprintf("auto_entry %q must not end in a number; use %q", c.AutoEntry, base))
		}
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "EntryWriter", "Validate", "check config")
}
