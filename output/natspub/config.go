package natspub

import (
	"fmt"
	"strings"

	"github.com/c360/mspikes/errors"
)

// Config holds the nats_publisher parameters.
type Config struct {
	// URL of a NATS server to connect to. Empty uses the shared connection.
	URL string `json:"url,omitempty"`
	// Prefix is the first subject token.
	Prefix string `json:"prefix"`
	// Stream, when set, publishes through a JetStream stream of this name
	// covering <prefix>.>.
	Stream string `json:"stream,omitempty"`
	// Rate limits publishing to this many chunks per second. Zero is unlimited.
	Rate float64 `json:"rate,omitempty"`
	// Burst is the number of chunks that may be published at once above Rate.
	Burst int `json:"burst,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{Prefix: "mspikes"}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return invalid("prefix is required")
	}
	if strings.ContainsAny(c.Prefix, " \t*>") || strings.HasPrefix(c.Prefix, ".") || strings.HasSuffix(c.Prefix, ".") {
		return invalid(fmt.Sprintf("prefix %q is not a valid subject", c.Prefix))
	}
	if strings.ContainsAny(c.Stream, " \t.*>") {
		return invalid(fmt.Sprintf("stream %q is not a valid stream name", c.Stream))
	}
	if c.Rate < 0 || c.Burst < 0 {
		return invalid("rate and burst cannot be negative")
	}
	if c.Burst > 0 && c.Rate == 0 {
		return invalid("burst requires rate")
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "NATSPublisher", "Validate", "check config")
}
