package spikedetect

import (
	"fmt"

	"github.com/c360/mspikes/errors"
)

// Config holds the spike_extract parameters. Times are in milliseconds.
type Config struct {
	// Thresh is an absolute threshold; negative values detect
	// negative-going crossings.
	Thresh *float64 `json:"thresh,omitempty"`
	// ThreshRel sets the threshold to mean + ThreshRel*rms using the
	// latest statistics chunk for the channel.
	ThreshRel *float64 `json:"thresh_rel,omitempty"`
	// Interval is the extraction window [before, after] around each peak.
	Interval []float64 `json:"interval,omitempty"`
	// WindowMS is the peak search window; defaults to Interval[1].
	WindowMS *float64 `json:"window_ms,omitempty"`
	// RefractoryMS is the dead time after a peak; defaults to WindowMS.
	RefractoryMS *float64 `json:"refractory_ms,omitempty"`
}

// DefaultConfig returns the default extraction interval. A threshold must
// still be supplied.
func DefaultConfig() Config {
	return Config{Interval: []float64{1.0, 2.0}}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch {
	case c.Thresh == nil && c.ThreshRel == nil:
		return invalid("one of thresh or thresh_rel is required")
	case c.Thresh != nil && c.ThreshRel != nil:
		return invalid("thresh and thresh_rel are mutually exclusive")
	case c.Thresh != nil && *c.Thresh == 0:
		return invalid("thresh must be nonzero")
	case c.ThreshRel != nil && *c.ThreshRel == 0:
		return invalid("thresh_rel must be nonzero")
	}
	if len(c.Interval) != 2 {
		return invalid("interval needs two values [before, after]")
	}
	if c.Interval[0] < 0 || c.Interval[1] < 0 || c.Interval[0]+c.Interval[1] <= 0 {
		return invalid("interval values must be non-negative with a positive sum")
	}
	if c.WindowMS != nil && *c.WindowMS <= 0 {
		return invalid("window_ms must be positive")
	}
	if c.RefractoryMS != nil && *c.RefractoryMS < 0 {
		return invalid("refractory_ms must not be negative")
	}
	return nil
}

func (c *Config) window() float64 {
	if c.WindowMS != nil {
		return *c.WindowMS
	}
	return c.Interval[1]
}

func (c *Config) refractory() float64 {
	if c.RefractoryMS != nil {
		return *c.RefractoryMS
	}
	return c.window()
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "SpikeExtract", "Validate", "check config")
}
