package chunk

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_DefaultTags(t *testing.T) {
	s := NewSampled("pen1", big.NewRat(1, 2), 20000, []float64{1, 2, 3}, "raw")
	assert.Equal(t, Sampled, s.Kind)
	assert.True(t, s.Tags.Has(TagSamples))
	assert.True(t, s.Tags.Has("raw"))
	assert.False(t, s.Tags.Has(TagEvents))

	e := NewEvents("pen1", nil, 0, []Event{{Start: 0.1}})
	assert.Equal(t, Events, e.Kind)
	assert.Equal(t, 0, e.Offset.Sign())
	assert.Equal(t, 1, e.Len())

	st := NewStructure("entry_0", big.NewRat(0, 1), 0, StructureInfo{UUID: "u"})
	assert.True(t, st.Tags.Has(TagStructure))
	require.NotNil(t, st.Structure)
	assert.Equal(t, "u", st.Structure.UUID)

	sc := NewScalar("pen1", big.NewRat(0, 1), map[string]float64{"rms": 2})
	assert.True(t, sc.Tags.Has(TagScalar))
}

func TestChunk_Immutability(t *testing.T) {
	off := big.NewRat(1, 1)
	c := NewSampled("a", off, 10, []float64{1})
	off.SetInt64(5)
	assert.Equal(t, "1", c.Offset.RatString(), "constructor must copy the offset")

	moved := c.WithOffset(big.NewRat(2, 1))
	assert.Equal(t, "1", c.Offset.RatString())
	assert.Equal(t, "2", moved.Offset.RatString())

	tagged := c.WithTags("extra", "samples")
	assert.False(t, c.Tags.Has("extra"))
	assert.Equal(t, Tags{"extra", "samples"}, tagged.Tags)
}

func TestChunk_DurationAndEnd(t *testing.T) {
	c := NewSampled("a", big.NewRat(1, 3), 3, []float64{0, 0, 0, 0})
	assert.Equal(t, "4/3", c.Duration().RatString())
	assert.Equal(t, "5/3", c.End().RatString())

	e := NewEvents("a", big.NewRat(1, 1), 3, nil)
	assert.Equal(t, "0", e.Duration().RatString())
}

func TestTags(t *testing.T) {
	tags := NewTags("b", "a", "b", "")
	assert.Equal(t, Tags{"a", "b"}, tags)
	assert.True(t, tags.Any("x", "a"))
	assert.False(t, tags.Any("x", "y"))
}

func TestToSampOrSec(t *testing.T) {
	tests := []struct {
		name string
		t    *big.Rat
		rate int64
		want float64
	}{
		{"whole second", big.NewRat(1, 1), 1000, 1000},
		{"half sample rounds up", big.NewRat(10005, 10000), 1000, 1001},
		{"no rate keeps seconds", big.NewRat(10005, 10000), 0, 1.0005},
		{"negative half rounds away", big.NewRat(-10005, 10000), 1000, -1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ToSampOrSec(tt.t, tt.rate), 1e-12)
		})
	}
}

func TestToSeconds(t *testing.T) {
	assert.Equal(t, "11/10", ToSeconds(1000, 10000, big.NewRat(1, 1)).RatString())
	assert.Equal(t, "7", ToSeconds(2, 0, big.NewRat(5, 1)).RatString())
	assert.True(t, IsWholeSamples(big.NewRat(3, 2), 2))
	assert.False(t, IsWholeSamples(big.NewRat(1, 3), 2))
	assert.Equal(t, "-20", SamplesBetween(big.NewRat(2, 1), big.NewRat(1, 1), 20).RatString())
}

func TestTimeConversion(t *testing.T) {
	ts := time.Date(2013, 7, 12, 14, 5, 16, 250_000_000, time.UTC)
	r := FromTime(ts)
	assert.True(t, ToTime(r).Equal(ts))

	later := new(big.Rat).Add(r, big.NewRat(3, 2))
	assert.True(t, ToTime(later).Equal(ts.Add(1500*time.Millisecond)))
}

func TestShiftEvents(t *testing.T) {
	in := []Event{{Start: 1}, {Start: 2}, {Start: 3}}
	out := ShiftEvents(in, 1)
	assert.Equal(t, []float64{2, 3, 4}, []float64{out[0].Start, out[1].Start, out[2].Start})
	assert.Equal(t, 1.0, in[0].Start, "input must not be modified")
}

func TestRecord_KeepsExactOffset(t *testing.T) {
	c := NewSampled("pen1", big.NewRat(1, 3), 3, []float64{1, 2}, "raw")
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var r Record
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "1/3", r.Offset)
	assert.Equal(t, "sampled", r.Kind)
	assert.Equal(t, []string{"raw", TagSamples}, r.Tags)

	var back Chunk
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, back.Offset.Cmp(c.Offset))
	assert.Equal(t, c.Tags, back.Tags)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"sampled","offset":"x"}`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"audio","offset":"0"}`), &back))
}
