// Package splitter breaks long sampled chunks into pieces of bounded size
// and restricts chunks to a time interval.
package splitter

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// Config holds the splitter parameters.
type Config struct {
	// NSamples is the largest number of samples in an emitted chunk.
	NSamples int64 `json:"nsamples"`
	// Start excludes data before this time in seconds.
	Start float64 `json:"start"`
	// Stop excludes data at or after this time in seconds when set.
	Stop *float64 `json:"stop,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{NSamples: 4096}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.NSamples <= 0 {
		return invalid("nsamples must be positive, got %d", c.NSamples)
	}
	if c.Start < 0 {
		return invalid("start must not be negative")
	}
	if c.Stop != nil && *c.Stop <= c.Start {
		return invalid("stop must be after start")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Splitter", "Validate", "check config")
}

// Splitter handles the chunks of one channel.
type Splitter struct {
	component.Base
	nsamples    int64
	start, stop *big.Rat // stop is nil when unbounded
	lastEnd     *big.Rat
}

// NewSplitter creates a splitter for one channel.
func NewSplitter(name string, cfg Config, deps component.Dependencies) *Splitter {
	s := &Splitter{
		Base:     component.NewBase(name, deps),
		nsamples: cfg.NSamples,
		start:    chunk.FromDecimal(cfg.Start),
	}
	if cfg.Stop != nil {
		s.stop = chunk.FromDecimal(*cfg.Stop)
	}
	return s
}

// Send splits sampled chunks and filters event chunks by time.
func (s *Splitter) Send(ctx context.Context, c *chunk.Chunk) error {
	s.Received(c)
	switch c.Kind {
	case chunk.Sampled:
		return s.sendSamples(ctx, c)
	case chunk.Events:
		return s.sendEvents(ctx, c)
	default:
		return s.Emit(ctx, c)
	}
}

func (s *Splitter) sendSamples(ctx context.Context, c *chunk.Chunk) error {
	if s.lastEnd != nil && c.Offset.Cmp(s.lastEnd) < 0 {
		s.Logger().Warn("Chunk overlaps the previous chunk", "chunk", c.String(), "previous_end", s.lastEnd.FloatString(6))
	}
	s.lastEnd = c.End()
	if c.SamplingRate <= 0 {
		return s.Emit(ctx, c)
	}

	n := int64(len(c.Samples))
	first := max(chunk.CeilSamples(new(big.Rat).Sub(s.start, c.Offset), c.SamplingRate), 0)
	last := n
	if s.stop != nil {
		last = min(chunk.CeilSamples(new(big.Rat).Sub(s.stop, c.Offset), c.SamplingRate), n)
	}
	for i := first; i < last; i += s.nsamples {
		j := min(i+s.nsamples, last)
		piece := c.WithSamples(chunk.ToSeconds(i, c.SamplingRate, c.Offset), c.Samples[i:j])
		if err := s.Emit(ctx, piece); err != nil {
			return err
		}
	}
	return nil
}

func (s *Splitter) sendEvents(ctx context.Context, c *chunk.Chunk) error {
	if s.start.Sign() == 0 && s.stop == nil {
		return s.Emit(ctx, c)
	}
	kept := make([]chunk.Event, 0, len(c.Events))
	for _, ev := range c.Events {
		t := new(big.Rat).Add(c.Offset, eventSeconds(ev.Start, c.SamplingRate))
		if t.Cmp(s.start) < 0 || (s.stop != nil && t.Cmp(s.stop) >= 0) {
			continue
		}
		kept = append(kept, ev)
	}
	if len(kept) == 0 {
		return nil
	}
	return s.Emit(ctx, c.WithEvents(c.Offset, kept))
}

func eventSeconds(start float64, rate int64) *big.Rat {
	t := chunk.FromFloat(start)
	if rate > 0 {
		t.Quo(t, new(big.Rat).SetInt64(rate))
	}
	return t
}

// NewProcessor builds a splitter node with one Splitter per channel.
func NewProcessor(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "Splitter", "NewProcessor", "decode config")
	}
	return component.NewParallel(name, func(key string) (component.Node, error) {
		return NewSplitter(name+"."+key, cfg, deps), nil
	},
		component.WithDispatchTags(chunk.TagSamples, chunk.TagEvents),
		component.WithLogger(deps.GetLogger()),
	), nil
}

// Register registers the splitter node type
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "splitter",
		Factory:     NewProcessor,
		Type:        component.TypeProcessor,
		Description: "Split sampled chunks and restrict data to a time interval",
		Version:     "1.0.0",
	})
}
