package container

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
)

func newEntry(name string) CreateEntry {
	return CreateEntry{Entry: EntryInfo{Name: name, Timestamp: time.Unix(100, 0).UTC(), UUID: "u-" + name}}
}

func sampledDataset(name string, growable bool) DatasetInfo {
	return DatasetInfo{Name: name, Kind: chunk.Sampled, SamplingRate: 20000, Offset: big.NewRat(1, 2), Growable: growable}
}

func TestMemory_ApplyAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test", 20000)
	require.NoError(t, m.Apply(ctx, []Op{
		newEntry("entry_0"),
		CreateDataset{Entry: "entry_0", Dataset: sampledDataset("pen1", true)},
		AppendSamples{Entry: "entry_0", Dataset: "pen1", Samples: []float64{1, 2, 3}},
		CreateDataset{Entry: "entry_0", Dataset: DatasetInfo{Name: "spikes", Kind: chunk.Events, SamplingRate: 20000, Growable: true}},
		AppendEvents{Entry: "entry_0", Dataset: "spikes", Events: []chunk.Event{{Start: 4}}},
	}))
	require.NoError(t, m.Apply(ctx, []Op{
		AppendSamples{Entry: "entry_0", Dataset: "pen1", Samples: []float64{4}},
	}))

	entries, err := m.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u-entry_0", entries[0].UUID)

	dsets, err := m.Datasets(ctx, "entry_0")
	require.NoError(t, err)
	require.Len(t, dsets, 2)
	assert.Equal(t, int64(4), dsets[0].Length)
	assert.Equal(t, "1/2", dsets[0].Offset.RatString())
	assert.Equal(t, int64(1), dsets[1].Length)

	data, err := m.ReadSamples(ctx, "entry_0", "pen1", 1, -1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, data)

	events, err := m.ReadEvents(ctx, "entry_0", "spikes")
	require.NoError(t, err)
	assert.Equal(t, []chunk.Event{{Start: 4}}, events)
	assert.Equal(t, int64(20000), m.Info().SamplingRate)
}

func TestMemory_AtomicBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test", 0)
	require.NoError(t, m.Apply(ctx, []Op{
		newEntry("a"),
		CreateDataset{Entry: "a", Dataset: sampledDataset("pen1", true)},
		AppendSamples{Entry: "a", Dataset: "pen1", Samples: []float64{1}},
	}))

	err := m.Apply(ctx, []Op{
		AppendSamples{Entry: "a", Dataset: "pen1", Samples: []float64{2, 3}},
		newEntry("b"),
		newEntry("a"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConflict)

	entries, _ := m.Entries(ctx)
	assert.Len(t, entries, 1, "failed batch must not create entries")
	data, _ := m.ReadSamples(ctx, "a", "pen1", 0, -1)
	assert.Equal(t, []float64{1}, data, "failed batch must not append samples")

	require.NoError(t, m.Apply(ctx, []Op{AppendSamples{Entry: "a", Dataset: "pen1", Samples: []float64{5}}}))
	data, _ = m.ReadSamples(ctx, "a", "pen1", 0, -1)
	assert.Equal(t, []float64{1, 5}, data)
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("test", 0)
	require.NoError(t, m.Apply(ctx, []Op{
		newEntry("a"),
		CreateDataset{Entry: "a", Dataset: sampledDataset("fixed", false)},
		AppendSamples{Entry: "a", Dataset: "fixed", Samples: []float64{1}},
	}))

	tests := []struct {
		name string
		op   Op
		is   error
	}{
		{"missing entry", CreateDataset{Entry: "z", Dataset: sampledDataset("x", true)}, errors.ErrEntryNotFound},
		{"missing dataset", AppendSamples{Entry: "a", Dataset: "x"}, errors.ErrDatasetNotFound},
		{"duplicate dataset", CreateDataset{Entry: "a", Dataset: sampledDataset("fixed", true)}, errors.ErrConflict},
		{"wrong kind", AppendEvents{Entry: "a", Dataset: "fixed"}, errors.ErrConflict},
		{"not growable", AppendSamples{Entry: "a", Dataset: "fixed", Samples: []float64{2}}, errors.ErrCapacity},
		{"no rate", CreateDataset{Entry: "a", Dataset: DatasetInfo{Name: "y", Kind: chunk.Sampled}}, errors.ErrInvalidData},
		{"delete missing", DeleteDataset{Entry: "a", Dataset: "x"}, errors.ErrDatasetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Apply(ctx, []Op{tt.op}), tt.is)
		})
	}

	require.NoError(t, m.Apply(ctx, []Op{DeleteDataset{Entry: "a", Dataset: "fixed"}}))
	dsets, _ := m.Datasets(ctx, "a")
	assert.Empty(t, dsets)
}

func TestOpener(t *testing.T) {
	ctx := context.Background()
	o := NewOpener()

	_, err := o.Open(ctx, "mem:shared", OpenOptions{})
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)

	a, err := o.Open(ctx, "mem:shared", OpenOptions{Create: true, SamplingRate: 1000})
	require.NoError(t, err)
	b, err := o.Open(ctx, "mem:shared", OpenOptions{})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int64(1000), b.Info().SamplingRate)

	_, err = o.Open(ctx, "recording.db", OpenOptions{})
	assert.ErrorIs(t, err, errors.ErrUnknownType, "sqlite is registered by the caller")

	o.Register(BackendSQLite, func(ctx context.Context, path string, opts OpenOptions) (Container, error) {
		return NewMemory(path, opts.SamplingRate), nil
	})
	c, err := o.Open(ctx, "recording.db", OpenOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recording.db", c.Info().Path)
}

func TestDataOffset(t *testing.T) {
	r := func(n int64) *big.Rat { return new(big.Rat).SetInt64(n) }
	tests := []struct {
		name      string
		entryTime *big.Rat
		entryRate int64
		dsetTime  *big.Rat
		dsetRate  int64
		want      *big.Rat
	}{
		{"real entry timebase", r(100), 0, nil, 0, r(100)},
		{"sampled entry", r(1000), 10, nil, 0, r(100)},
		{"real entry, real dataset", r(100), 0, r(10), 0, r(110)},
		{"real entry, sampled dataset", r(100), 0, r(100), 10, r(110)},
		{"sampled entry, real dataset", r(1000), 10, r(10), 0, r(110)},
		{"sampled entry, sampled dataset", r(1000), 10, r(100), 10, r(110)},
		{"convertible rates", r(1000), 10, r(1000), 100, r(110)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DataOffset(tt.entryTime, tt.entryRate, tt.dsetTime, tt.dsetRate)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(tt.want), "got %s", got.RatString())
		})
	}

	_, err := DataOffset(r(1000), 10, r(1000), 66)
	assert.ErrorIs(t, err, errors.ErrInvalidData)
}

func TestFrameCounter(t *testing.T) {
	var fc FrameCounter
	frames := []uint32{4294967000, 4294967295, 100, 1000}
	var got []uint64
	for _, f := range frames {
		got = append(got, fc.Next(f))
	}
	assert.Equal(t, []uint64{0, 295, 396, 1296}, got)
}
