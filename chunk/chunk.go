// Package chunk defines the unit of data that flows through an mspikes
// pipeline: an immutable, time-positioned, tagged block of samples, events,
// structure markers or scalar statistics.
package chunk

import (
	"fmt"
	"math/big"
	"slices"
	"time"
)

// Kind identifies the payload carried by a Chunk.
type Kind int

const (
	// Sampled chunks carry uniformly sampled data.
	Sampled Kind = iota
	// Events chunks carry point-process records.
	Events
	// Structure chunks mark the start of a logical recording entry.
	Structure
	// Scalar chunks carry named statistics.
	Scalar
)

// Default tags attached by the constructors.
const (
	TagSamples   = "samples"
	TagEvents    = "events"
	TagStructure = "structure"
	TagScalar    = "scalar"
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case Sampled:
		return "sampled"
	case Events:
		return "events"
	case Structure:
		return "structure"
	case Scalar:
		return "scalar"
	default:
		return "unknown"
	}
}

func (k Kind) tag() string {
	switch k {
	case Sampled:
		return TagSamples
	case Events:
		return TagEvents
	case Structure:
		return TagStructure
	default:
		return TagScalar
	}
}

// Event is one point-process record. Start is in samples when the owning
// chunk has a sampling rate and in seconds otherwise.
type Event struct {
	Start  float64            `json:"start"`
	Spike  []float64          `json:"spike,omitempty"`
	Fields map[string]float64 `json:"fields,omitempty"`
}

// StructureInfo describes the entry a structure chunk announces.
type StructureInfo struct {
	Timestamp   *time.Time        `json:"timestamp,omitempty"`
	UUID        string            `json:"uuid,omitempty"`
	SampleCount *int64            `json:"sample_count,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}

// Chunk is a labeled, time-positioned unit of data. Chunks are treated as
// immutable once constructed; transforms build new chunks.
type Chunk struct {
	ID           string
	Offset       *big.Rat
	SamplingRate int64
	Kind         Kind
	Tags         Tags

	Samples   []float64
	Events    []Event
	Structure *StructureInfo
	Scalar    map[string]float64
}

func newChunk(id string, offset *big.Rat, rate int64, kind Kind, extra []string) *Chunk {
	if offset == nil {
		offset = new(big.Rat)
	}
	return &Chunk{
		ID:           id,
		Offset:       new(big.Rat).Set(offset),
		SamplingRate: rate,
		Kind:         kind,
		Tags:         NewTags(append([]string{kind.tag()}, extra...)...),
	}
}

// NewSampled creates a sampled chunk.
func NewSampled(id string, offset *big.Rat, rate int64, samples []float64, tags ...string) *Chunk {
	c := newChunk(id, offset, rate, Sampled, tags)
	c.Samples = samples
	return c
}

// NewEvents creates an events chunk. rate may be zero when event times are in seconds.
func NewEvents(id string, offset *big.Rat, rate int64, events []Event, tags ...string) *Chunk {
	c := newChunk(id, offset, rate, Events, tags)
	c.Events = events
	return c
}

// NewStructure creates a structure chunk announcing entry id at offset.
func NewStructure(id string, offset *big.Rat, rate int64, info StructureInfo, tags ...string) *Chunk {
	c := newChunk(id, offset, rate, Structure, tags)
	c.Structure = &info
	return c
}

// NewScalar creates a scalar chunk.
func NewScalar(id string, offset *big.Rat, values map[string]float64, tags ...string) *Chunk {
	c := newChunk(id, offset, 0, Scalar, tags)
	c.Scalar = values
	return c
}

// WithOffset returns a shallow copy of c positioned at offset.
func (c *Chunk) WithOffset(offset *big.Rat) *Chunk {
	out := *c
	out.Offset = new(big.Rat).Set(offset)
	return &out
}

// WithTags returns a shallow copy of c with additional tags.
func (c *Chunk) WithTags(tags ...string) *Chunk {
	out := *c
	out.Tags = NewTags(append(slices.Clone(c.Tags), tags...)...)
	return &out
}

// WithSamples returns a copy of a sampled chunk with new data at offset.
func (c *Chunk) WithSamples(offset *big.Rat, samples []float64) *Chunk {
	out := c.WithOffset(offset)
	out.Samples = samples
	return out
}

// WithEvents returns a copy of c carrying events at offset.
func (c *Chunk) WithEvents(offset *big.Rat, events []Event) *Chunk {
	out := c.WithOffset(offset)
	out.Events = events
	return out
}

// Len returns the number of samples or events in the chunk.
func (c *Chunk) Len() int {
	switch c.Kind {
	case Sampled:
		return len(c.Samples)
	case Events:
		return len(c.Events)
	default:
		return 0
	}
}

// Duration returns the time spanned by a sampled chunk in seconds. It is zero
// for other kinds or when the sampling rate is absent.
func (c *Chunk) Duration() *big.Rat {
	if c.Kind != Sampled || c.SamplingRate <= 0 {
		return new(big.Rat)
	}
	return big.NewRat(int64(len(c.Samples)), c.SamplingRate)
}

// End returns the time just past the last sample of a sampled chunk.
func (c *Chunk) End() *big.Rat {
	return new(big.Rat).Add(c.Offset, c.Duration())
}

// String returns a compact description used in logs and errors.
func (c *Chunk) String() string {
	return fmt.Sprintf("%s@%s(%s)", c.ID, c.Offset.FloatString(6), c.Kind)
}
