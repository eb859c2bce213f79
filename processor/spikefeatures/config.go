package spikefeatures

import (
	"fmt"
	"slices"

	"github.com/c360/mspikes/errors"
)

// Config holds the spike_features parameters.
type Config struct {
	// Resamp is the upsampling factor used to locate peaks.
	Resamp int `json:"resamp"`
	// MaxShift is the largest accepted peak displacement in upsampled
	// samples. Defaults to Resamp.
	MaxShift *int `json:"max_shift,omitempty"`
	// NFeats is the number of principal components to report.
	NFeats int `json:"nfeats"`
	// MaxPCA caps the number of waveforms used to compute the basis.
	MaxPCA int `json:"max_pca"`
	// Measurements names additional shape measurements.
	Measurements []string `json:"measurements,omitempty"`
	// Decimate returns aligned waveforms at the input sampling rate.
	Decimate bool `json:"decimate"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Resamp:   3,
		NFeats:   3,
		MaxPCA:   5000,
		Decimate: true,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Resamp <= 1 {
		return invalid("resamp must be greater than 1, got %d", c.Resamp)
	}
	if c.MaxShift != nil && (*c.MaxShift < 0 || *c.MaxShift > c.Resamp) {
		return invalid("max_shift must be between 0 and resamp (%d), got %d", c.Resamp, *c.MaxShift)
	}
	if c.NFeats < 0 {
		return invalid("nfeats must not be negative, got %d", c.NFeats)
	}
	if c.MaxPCA <= 0 {
		return invalid("max_pca must be positive, got %d", c.MaxPCA)
	}
	for _, m := range c.Measurements {
		if !slices.Contains(Measurements, m) {
			return invalid("unknown measurement %q", m)
		}
	}
	return nil
}

func (c *Config) maxShift() int {
	if c.MaxShift != nil {
		return *c.MaxShift
	}
	return c.Resamp
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"SpikeFeatures", "Validate", "check config")
}
