package entrywriter

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/register"
	"github.com/c360/mspikes/storage/container"
)

var epoch = time.Date(2013, 7, 12, 14, 0, 0, 0, time.UTC)

func newDeps() component.Dependencies {
	deps := component.NewDependencies(nil, nil)
	deps.Clock = func() time.Time { return epoch }
	return deps
}

func newWriter(t *testing.T, deps component.Dependencies, cfg Config) *Writer {
	t.Helper()
	cfg.File = "mem:writer"
	cfg.Create = true
	w, err := NewWriter(context.Background(), "writer", cfg, deps)
	require.NoError(t, err)
	return w
}

// stored reopens the shared memory container the writer uses.
func stored(t *testing.T, deps component.Dependencies) container.Container {
	t.Helper()
	c, err := deps.Containers.Open(context.Background(), "mem:writer", container.OpenOptions{})
	require.NoError(t, err)
	return c
}

func entryNames(t *testing.T, c container.Container) []string {
	t.Helper()
	entries, err := c.Entries(context.Background())
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func dataset(t *testing.T, c container.Container, entry, name string) container.DatasetInfo {
	t.Helper()
	list, err := c.Datasets(context.Background(), entry)
	require.NoError(t, err)
	for _, ds := range list {
		if ds.Name == name {
			return ds
		}
	}
	t.Fatalf("no dataset %s/%s", entry, name)
	return container.DatasetInfo{}
}

func structure(name string, offset int64, info chunk.StructureInfo) *chunk.Chunk {
	return chunk.NewStructure(name, big.NewRat(offset, 1), 0, info)
}

func TestTable(t *testing.T) {
	var tbl Table
	tbl.Insert(big.NewRat(10, 1), "b")
	tbl.Insert(big.NewRat(0, 1), "a")
	tbl.Insert(big.NewRat(25, 1), "d")
	tbl.Insert(big.NewRat(20, 1), "c")
	assert.Equal(t, []string{"a", "b", "c", "d"}, tbl.Names())

	tests := []struct {
		at     *big.Rat
		name   string
		offset string
		ok     bool
	}{
		{big.NewRat(-1, 1), "", "", false},
		{big.NewRat(0, 1), "a", "0", true},
		{big.NewRat(19, 2), "a", "0", true},
		{big.NewRat(10, 1), "b", "10", true},
		{big.NewRat(100, 1), "d", "25", true},
	}
	for _, tt := range tests {
		t.Run(tt.at.RatString(), func(t *testing.T) {
			name, off, ok := tbl.Lookup(tt.at)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			if ok {
				assert.Equal(t, tt.offset, off.RatString())
			}
		})
	}

	assert.Equal(t, "10", tbl.NextAfter(big.NewRat(0, 1)).RatString())
	assert.Equal(t, "20", tbl.NextAfter(big.NewRat(10, 1)).RatString())
	assert.Nil(t, tbl.NextAfter(big.NewRat(25, 1)))
}

func TestNaming(t *testing.T) {
	taken := func(names ...string) func(string) bool {
		return func(s string) bool {
			for _, n := range names {
				if n == s {
					return true
				}
			}
			return false
		}
	}
	assert.Equal(t, "entry_4", successor("entry_3", taken()))
	assert.Equal(t, "entry_5", successor("entry_3", taken("entry_4")))
	assert.Equal(t, "rec_1", successor("rec", taken()))
	assert.Equal(t, "site_2_1", successor("site_2_0", taken()))
	assert.Equal(t, "auto_2", nextFree("auto", 0, taken("auto_0", "auto_1")))
}

func TestWriter_Structure(t *testing.T) {
	ctx := context.Background()
	deps := newDeps()
	w := newWriter(t, deps, Config{})
	ts := epoch.Add(time.Hour)

	first := structure("e1", 0, chunk.StructureInfo{Timestamp: &ts, UUID: "u1"})
	require.NoError(t, w.Send(ctx, first))

	t.Run("identical structure is a no-op", func(t *testing.T) {
		require.NoError(t, w.Send(ctx, first))
		assert.Equal(t, []string{"e1"}, entryNames(t, stored(t, deps)))
	})

	t.Run("uuid mismatch", func(t *testing.T) {
		err := w.Send(ctx, structure("e1", 0, chunk.StructureInfo{UUID: "other"}))
		assert.ErrorIs(t, err, errors.ErrConflict)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("timestamp mismatch", func(t *testing.T) {
		later := ts.Add(time.Second)
		err := w.Send(ctx, structure("e1", 0, chunk.StructureInfo{Timestamp: &later}))
		assert.ErrorIs(t, err, errors.ErrConflict)
	})

	t.Run("timestamp interpolated from the nearest entry", func(t *testing.T) {
		require.NoError(t, w.Send(ctx, chunk.NewStructure("e2", big.NewRat(5, 2), 0, chunk.StructureInfo{})))
		entries, err := stored(t, deps).Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, entries[1].Timestamp.Equal(ts.Add(2500*time.Millisecond)), entries[1].Timestamp)
		assert.NotEmpty(t, entries[1].UUID)
		assert.Equal(t, []string{"e1", "e2"}, w.Table().Names())
	})
}

func TestWriter_FirstEntryUsesClock(t *testing.T) {
	ctx := context.Background()
	deps := newDeps()
	w := newWriter(t, deps, Config{SamplingRate: 1000})

	require.NoError(t, w.Send(ctx, chunk.NewStructure("e1", big.NewRat(3, 2), 0, chunk.StructureInfo{})))
	entries, err := stored(t, deps).Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Timestamp.Equal(epoch))
	require.NotNil(t, entries[0].SampleCount)
	assert.Equal(t, int64(1500), *entries[0].SampleCount)
}

func TestWriter_Samples(t *testing.T) {
	ctx := context.Background()

	t.Run("boundary without auto entries", func(t *testing.T) {
		w := newWriter(t, newDeps(), Config{})
		err := w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(0, 1), 10, []float64{1}))
		assert.ErrorIs(t, err, errors.ErrBoundary)
	})

	t.Run("auto entry before the first structure", func(t *testing.T) {
		deps := newDeps()
		w := newWriter(t, deps, Config{AutoEntry: "entry"})
		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(0, 1), 10, []float64{1, 2})))
		assert.Equal(t, []string{"entry_0"}, entryNames(t, stored(t, deps)))
	})

	t.Run("append, gap and overlap", func(t *testing.T) {
		deps := newDeps()
		_, err := deps.Register.Add("pen1", register.Properties{Units: "mV", UUID: "pen-uuid"})
		require.NoError(t, err)
		w := newWriter(t, deps, Config{})
		require.NoError(t, w.Send(ctx, structure("rec", 0, chunk.StructureInfo{})))

		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(1, 2), 10, []float64{1, 2, 3, 4, 5})))
		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(1, 1), 10, []float64{6, 7})))

		store := stored(t, deps)
		ds := dataset(t, store, "rec", "pen1")
		assert.Equal(t, int64(7), ds.Length)
		assert.Equal(t, "1/2", ds.Offset.RatString())
		assert.Equal(t, "mV", ds.Units)
		assert.Equal(t, "pen-uuid", ds.UUID)
		assert.Equal(t, int64(10), ds.SamplingRate)

		// the dataset ends at 1.2 s
		err = w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(11, 10), 10, []float64{0}))
		assert.ErrorIs(t, err, errors.ErrConflict)

		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(2, 1), 10, []float64{8, 9})))
		assert.Equal(t, []string{"rec", "rec_1"}, entryNames(t, store))
		moved := dataset(t, store, "rec_1", "pen1")
		assert.Equal(t, "0", moved.Offset.RatString())
		data, err := store.ReadSamples(ctx, "rec_1", "pen1", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []float64{8, 9}, data)
		assert.Equal(t, int64(7), dataset(t, store, "rec", "pen1").Length)
	})

	t.Run("gap with auto entries continues the auto sequence", func(t *testing.T) {
		deps := newDeps()
		w := newWriter(t, deps, Config{AutoEntry: "entry"})
		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(0, 1), 10, []float64{1})))
		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(5, 1), 10, []float64{1})))
		assert.Equal(t, []string{"entry_0", "entry_1"}, entryNames(t, stored(t, deps)))
	})

	t.Run("rate conflict", func(t *testing.T) {
		w := newWriter(t, newDeps(), Config{AutoEntry: "entry"})
		require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(0, 1), 10, []float64{1})))
		err := w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(1, 10), 20, []float64{1}))
		assert.ErrorIs(t, err, errors.ErrConflict)
	})
}

func TestWriter_EventSplit(t *testing.T) {
	ctx := context.Background()
	deps := newDeps()
	w := newWriter(t, deps, Config{})
	require.NoError(t, w.Send(ctx, structure("a", 0, chunk.StructureInfo{})))
	require.NoError(t, w.Send(ctx, structure("b", 10, chunk.StructureInfo{})))

	// at 10 Hz from 5 s these fall at 5, 8, 9.9, 10 and 12 s
	in := []chunk.Event{{Start: 0}, {Start: 30}, {Start: 49}, {Start: 50}, {Start: 70}}
	require.NoError(t, w.Send(ctx, chunk.NewEvents("spk", big.NewRat(5, 1), 10, in)))

	store := stored(t, deps)
	before, err := store.ReadEvents(ctx, "a", "spk")
	require.NoError(t, err)
	after, err := store.ReadEvents(ctx, "b", "spk")
	require.NoError(t, err)
	assert.Equal(t, []chunk.Event{{Start: 0}, {Start: 30}, {Start: 49}}, before)
	assert.Equal(t, []chunk.Event{{Start: 0}, {Start: 20}}, after)

	dsA, dsB := dataset(t, store, "a", "spk"), dataset(t, store, "b", "spk")
	assert.Equal(t, "5", dsA.Offset.RatString())
	assert.Equal(t, "0", dsB.Offset.RatString())
	assert.Equal(t, "samples", dsA.Units)

	// rebased to a common origin the halves reproduce the input
	var union []float64
	for _, ev := range before {
		union = append(union, ev.Start)
	}
	for _, ev := range after {
		union = append(union, ev.Start+50)
	}
	assert.Equal(t, []float64{0, 30, 49, 50, 70}, union)

	t.Run("later chunks append to the next entry", func(t *testing.T) {
		require.NoError(t, w.Send(ctx, chunk.NewEvents("spk", big.NewRat(13, 1), 10, []chunk.Event{{Start: 1}})))
		after, err := store.ReadEvents(ctx, "b", "spk")
		require.NoError(t, err)
		assert.Equal(t, []chunk.Event{{Start: 0}, {Start: 20}, {Start: 31}}, after)
	})
}

func TestWriter_EventSplitIsAtomic(t *testing.T) {
	ctx := context.Background()
	deps := newDeps()
	w := newWriter(t, deps, Config{})
	require.NoError(t, w.Send(ctx, structure("a", 0, chunk.StructureInfo{})))
	require.NoError(t, w.Send(ctx, structure("b", 10, chunk.StructureInfo{})))
	require.NoError(t, w.Send(ctx, chunk.NewSampled("spk", big.NewRat(10, 1), 10, []float64{1})))

	// the second half would land on a sampled dataset
	err := w.Send(ctx, chunk.NewEvents("spk", big.NewRat(5, 1), 0, []chunk.Event{{Start: 1}, {Start: 6}}))
	assert.ErrorIs(t, err, errors.ErrConflict)

	list, err := stored(t, deps).Datasets(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list, "the first half must not be written")

	// state is unchanged, so a valid chunk still goes through
	require.NoError(t, w.Send(ctx, chunk.NewEvents("other", big.NewRat(5, 1), 0, []chunk.Event{{Start: 1}})))
	assert.Equal(t, "s", dataset(t, stored(t, deps), "a", "other").Units)
}

func TestWriter_ReopensExistingContainer(t *testing.T) {
	ctx := context.Background()
	deps := newDeps()
	w := newWriter(t, deps, Config{SamplingRate: 1000})
	require.NoError(t, w.Send(ctx, structure("a", 0, chunk.StructureInfo{})))
	require.NoError(t, w.Send(ctx, structure("b", 2, chunk.StructureInfo{})))
	require.NoError(t, w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(2, 1), 1000, []float64{1, 2})))
	require.NoError(t, w.Close(ctx))

	again := newWriter(t, deps, Config{})
	assert.Equal(t, []string{"a", "b"}, again.Table().Names())
	name, off, ok := again.Table().Lookup(big.NewRat(3, 1))
	require.True(t, ok)
	assert.Equal(t, "b", name)
	assert.Equal(t, "2", off.RatString())

	require.NoError(t, again.Send(ctx, chunk.NewSampled("pen1", big.NewRat(2002, 1000), 1000, []float64{3})))
	assert.Equal(t, int64(3), dataset(t, stored(t, deps), "b", "pen1").Length)
}

func TestWriter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	w := newWriter(t, newDeps(), Config{AutoEntry: "entry"})
	require.NoError(t, w.Send(ctx, chunk.NewScalar("pen1", nil, map[string]float64{"rms": 1})))
	w.Throw(ctx, errors.ErrConflict)
	require.NoError(t, w.Close(ctx))
	require.NoError(t, w.Close(ctx))

	err := w.Send(ctx, chunk.NewSampled("pen1", big.NewRat(0, 1), 10, []float64{1}))
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{File: "out.db"}, true},
		{"missing file", Config{}, false},
		{"unknown backend", Config{File: "x", Backend: "hdf5"}, false},
		{"numbered auto entry", Config{File: "x", AutoEntry: "entry_1"}, false},
		{"negative rate", Config{File: "x", SamplingRate: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}
