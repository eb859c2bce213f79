// Package signalstats tracks the moving mean and RMS of sampled channels.
//
// The signal_stats node emits a scalar chunk carrying {mean, rms} ahead of
// every sampled chunk it forwards, so downstream detectors configured with a
// relative threshold see statistics that include the chunk they are about to
// process.
package signalstats

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// Config holds the signal_stats parameters.
type Config struct {
	// Window is the integration time in seconds. Older samples are
	// down-weighted exponentially.
	Window float64 `json:"window"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{Window: 2.0}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Window <= 0 || math.IsInf(c.Window, 0) {
		return errors.WrapInvalid(fmt.Errorf("%w: window must be a positive number of seconds", errors.ErrInvalidConfig),
			"SignalStats", "Validate", "check config")
	}
	return nil
}

// Moments is a running estimate of the first two moments of a signal.
type Moments struct {
	Mean     float64
	Variance float64
	// Weight is the number of samples the estimate stands for, capped at
	// the window length.
	Weight float64
}

// Update folds x into the estimate, giving the previous state at most limit
// samples of weight.
func (m *Moments) Update(x []float64, limit float64) {
	n := float64(len(x))
	if n == 0 {
		return
	}
	w := math.Min(m.Weight, limit)
	mean := (m.Mean*w + floats.Sum(x)) / (w + n)
	// sum of squared deviations from the new mean
	xm, xv := stat.PopMeanVariance(x, nil)
	ss := n*xv + n*(xm-mean)*(xm-mean)
	m.Variance = (m.Variance*w + ss) / (w + n)
	m.Mean = mean
	m.Weight = math.Min(w+n, limit)
}

// RMS returns the square root of the variance.
func (m *Moments) RMS() float64 {
	return math.Sqrt(m.Variance)
}

// Tracker computes moving statistics for one channel.
type Tracker struct {
	component.Base
	cfg     Config
	rate    int64
	moments Moments
}

// NewTracker creates a tracker for one channel.
func NewTracker(name string, cfg Config, deps component.Dependencies) *Tracker {
	return &Tracker{Base: component.NewBase(name, deps), cfg: cfg}
}

// Send emits the updated statistics and then the chunk itself.
func (t *Tracker) Send(ctx context.Context, c *chunk.Chunk) error {
	t.Received(c)
	if c.Kind != chunk.Sampled || len(c.Samples) == 0 {
		return t.Emit(ctx, c)
	}
	if c.SamplingRate <= 0 {
		return t.Fail(errors.WrapInvalid(fmt.Errorf("%w: sampled chunk %s has no sampling rate", errors.ErrInvalidData, c),
			"SignalStats", "Send", "update statistics"))
	}
	if t.rate != 0 && t.rate != c.SamplingRate {
		t.Logger().Debug("Sampling rate changed, restarting statistics", "chunk", c.String(), "rate", c.SamplingRate)
		t.moments = Moments{}
	}
	t.rate = c.SamplingRate

	t.moments.Update(c.Samples, t.cfg.Window*float64(c.SamplingRate))
	stats := chunk.NewScalar(c.ID, c.Offset, map[string]float64{
		"mean": t.moments.Mean,
		"rms":  t.moments.RMS(),
	})
	if err := t.Emit(ctx, stats); err != nil {
		return err
	}
	return t.Emit(ctx, c)
}

// NewProcessor builds a signal_stats node with one tracker per channel.
func NewProcessor(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "SignalStats", "NewProcessor", "decode config")
	}
	return component.NewParallel(name, func(key string) (component.Node, error) {
		return NewTracker(name+"."+key, cfg, deps), nil
	},
		component.WithDispatchTags(chunk.TagSamples),
		component.WithLogger(deps.GetLogger()),
	), nil
}

// Register registers the signal_stats node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "signal_stats",
		Factory:     NewProcessor,
		Type:        component.TypeProcessor,
		Description: "Emit moving mean and RMS ahead of sampled chunks",
		Version:     "1.0.0",
	})
}
