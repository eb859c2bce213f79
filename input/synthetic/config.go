package synthetic

import (
	"fmt"
	"math"

	"github.com/c360/mspikes/errors"
)

// Common holds the parameters shared by every synthetic source.
type Common struct {
	Seed         uint64 `json:"seed"`
	NSamples     int64  `json:"nsamples"`
	ChunkSize    int64  `json:"chunk_size"`
	Channel      string `json:"channel"`
	SamplingRate int64  `json:"sampling_rate"`
	// Entry, when set, names a structure chunk emitted before any data.
	Entry string `json:"entry,omitempty"`
}

func (c *Common) validate(component string) error {
	fail := func(msg string) error {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), component, "Validate", "check config")
	}
	switch {
	case c.NSamples < 0:
		return fail("nsamples must not be negative")
	case c.ChunkSize <= 0:
		return fail("chunk_size must be positive")
	case c.Channel == "":
		return fail("channel is required")
	case c.SamplingRate <= 0:
		return fail("sampling_rate must be positive")
	}
	return nil
}

// RandConfig configures rand_samples.
type RandConfig struct {
	Common
}

// DefaultRandConfig returns the rand_samples defaults
func DefaultRandConfig() RandConfig {
	return RandConfig{Common{
		Seed:         1,
		NSamples:     4096,
		ChunkSize:    1024,
		Channel:      "random",
		SamplingRate: 1,
	}}
}

// Validate checks the configuration
func (c *RandConfig) Validate() error {
	return c.validate("RandSamples")
}

// SpikeConfig configures spike_train.
type SpikeConfig struct {
	Common
	// Period is the interval between spikes in seconds.
	Period float64 `json:"period"`
	// Amplitude is the depth of the spike trough.
	Amplitude float64 `json:"amplitude"`
	// Noise is the standard deviation of the background.
	Noise float64 `json:"noise"`
	// Width is the template duration in seconds.
	Width float64 `json:"width"`
	// Truth emits the injected peak times as events on <channel>_truth.
	Truth bool `json:"truth,omitempty"`
}

// DefaultSpikeConfig returns the spike_train defaults
func DefaultSpikeConfig() SpikeConfig {
	return SpikeConfig{
		Common: Common{
			Seed:         1,
			NSamples:     20000,
			ChunkSize:    4096,
			Channel:      "spikes",
			SamplingRate: 20000,
		},
		Period:    0.01,
		Amplitude: 8,
		Noise:     1,
		Width:     0.0015,
	}
}

// Validate checks the configuration
func (c *SpikeConfig) Validate() error {
	if err := c.validate("SpikeTrain"); err != nil {
		return err
	}
	fail := func(msg string) error {
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "SpikeTrain", "Validate", "check config")
	}
	switch {
	case !(c.Period > 0) || math.IsInf(c.Period, 0):
		return fail("period must be a positive number of seconds")
	case !(c.Width > 0) || c.Width > c.Period:
		return fail("width must be positive and no longer than period")
	case c.Noise < 0:
		return fail("noise must not be negative")
	case math.Round(c.Width*float64(c.SamplingRate)) < 3:
		return fail("width must span at least 3 samples")
	}
	return nil
}
