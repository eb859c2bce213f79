package containerreader

import (
	"fmt"
	"regexp"

	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/storage/container"
)

// Config holds the container_reader parameters.
type Config struct {
	// File is the container path, or mem:<name> for an in-process container.
	File    string `json:"file"`
	Backend string `json:"backend,omitempty"`
	// Channels and Entries are regular expressions; a dataset or entry is
	// read only when its name matches every pattern.
	Channels []string `json:"channels,omitempty"`
	Entries  []string `json:"entries,omitempty"`
	// Times restricts reading to [start, stop) seconds on the entry timebase.
	Times     []float64 `json:"times,omitempty"`
	ChunkSize int64     `json:"chunk_size"`
	// UseTimestamp orders entries by timestamp even when the container has a
	// sample clock.
	UseTimestamp bool `json:"use_timestamp"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{ChunkSize: 4096}
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
	if c.ChunkSize <= 0 {
		return invalid(fmt.Sprintf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if len(c.Times) != 0 {
		if len(c.Times) != 2 {
			return invalid("times must be [start, stop]")
		}
		if c.Times[1] <= c.Times[0] {
			return invalid("times stop must be after start")
		}
	}
	for _, p := range append(append([]string(nil), c.Channels...), c.Entries...) {
		if _, err := regexp.Compile(p); err != nil {
			return invalid(fmt.Sprintf("bad pattern %q: %v", p, err))
		}
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "ContainerReader", "Validate", "check config")
}

// matcher reports whether a name matches every pattern.
type matcher []*regexp.Regexp

func newMatcher(patterns []string) matcher {
	m := make(matcher, len(patterns))
	for i, p := range patterns {
		m[i] = regexp.MustCompile(p)
	}
	return m
}

func (m matcher) match(name string) bool {
	for _, rx := range m {
		if !rx.MatchString(name) {
			return false
		}
	}
	return true
}
