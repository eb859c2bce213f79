package synthetic

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
)

// filler writes samples [pos, pos+len(buf)) of a signal into buf and may
// return extra chunks to emit after the sampled one.
type filler func(pos int64, buf []float64) []*chunk.Chunk

// Source emits a generated signal in chunks of ChunkSize samples.
type Source struct {
	component.Base
	cfg     Common
	fill    filler
	entry   bool
	pos     int64
	pending []*chunk.Chunk
	closed  bool
}

func newSource(name string, cfg Common, deps component.Dependencies, fill filler) *Source {
	s := &Source{
		Base:  component.NewBase(name, deps),
		cfg:   cfg,
		fill:  fill,
		entry: cfg.Entry != "",
	}
	if s.entry {
		zero := int64(0)
		now := deps.Now()
		s.pending = append(s.pending, chunk.NewStructure(cfg.Entry, nil, cfg.SamplingRate, chunk.StructureInfo{
			Timestamp:   &now,
			UUID:        uuid.NewString(),
			SampleCount: &zero,
			Attrs:       map[string]string{"generator": name},
		}))
	}
	return s
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Next delivers the next chunk to the targets and returns it.
func (s *Source) Next(ctx context.Context) (*chunk.Chunk, error) {
	if s.closed {
		return nil, io.EOF
	}
	if len(s.pending) == 0 {
		if s.pos >= s.cfg.NSamples {
			return nil, io.EOF
		}
		n := min(s.cfg.ChunkSize, s.cfg.NSamples-s.pos)
		buf := make([]float64, n)
		extra := s.fill(s.pos, buf)
		offset := chunk.SamplesToSeconds(s.pos, s.cfg.SamplingRate)
		s.pending = append(s.pending, chunk.NewSampled(s.cfg.Channel, offset, s.cfg.SamplingRate, buf))
		s.pending = append(s.pending, extra...)
		s.pos += n
	}
	c := s.pending[0]
	s.pending = s.pending[1:]
	return c, s.Emit(ctx, c)
}

// Close stops generation and closes the targets.
func (s *Source) Close(ctx context.Context) error {
	if !s.closed {
		s.closed = true
		s.Logger().Debug("Generator closed", "samples", s.pos)
	}
	return s.Base.Close(ctx)
}

// NewRandSamples creates a source of seeded N(0,1) noise.
func NewRandSamples(name string, cfg RandConfig, deps component.Dependencies) *Source {
	rng := newRand(cfg.Seed)
	return newSource(name, cfg.Common, deps, func(_ int64, buf []float64) []*chunk.Chunk {
		for i := range buf {
			buf[i] = rng.NormFloat64()
		}
		return nil
	})
}
