package chunk

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Record is the JSON form of a chunk used by the log and broker sinks.
// Offset keeps the exact rational; Seconds is its float approximation.
type Record struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Offset       string             `json:"offset"`
	Seconds      float64            `json:"seconds"`
	SamplingRate int64              `json:"sampling_rate,omitempty"`
	Tags         []string           `json:"tags"`
	Samples      []float64          `json:"samples,omitempty"`
	Events       []Event            `json:"events,omitempty"`
	Structure    *StructureInfo     `json:"structure,omitempty"`
	Scalar       map[string]float64 `json:"scalar,omitempty"`
}

// ToRecord converts c to its JSON form.
func ToRecord(c *Chunk) Record {
	secs, _ := c.Offset.Float64()
	return Record{
		ID:           c.ID,
		Kind:         c.Kind.String(),
		Offset:       c.Offset.RatString(),
		Seconds:      secs,
		SamplingRate: c.SamplingRate,
		Tags:         c.Tags,
		Samples:      c.Samples,
		Events:       c.Events,
		Structure:    c.Structure,
		Scalar:       c.Scalar,
	}
}

// Chunk rebuilds the chunk a record describes.
func (r Record) Chunk() (*Chunk, error) {
	offset, ok := new(big.Rat).SetString(r.Offset)
	if !ok {
		return nil, fmt.Errorf("invalid offset %q", r.Offset)
	}
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	c := newChunk(r.ID, offset, r.SamplingRate, kind, r.Tags)
	c.Samples = r.Samples
	c.Events = r.Events
	c.Structure = r.Structure
	c.Scalar = r.Scalar
	return c, nil
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{Sampled, Events, Structure, Scalar} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown chunk kind %q", name)
}

// MarshalJSON encodes the chunk as a Record.
func (c *Chunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToRecord(c))
}

// UnmarshalJSON decodes a Record into the chunk.
func (c *Chunk) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	out, err := r.Chunk()
	if err != nil {
		return err
	}
	*c = *out
	return nil
}
