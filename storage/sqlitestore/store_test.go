package sqlitestore

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/metric"
	"github.com/c360/mspikes/storage/container"
)

func openTemp(t *testing.T, rate int64) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.db")
	s, err := Open(context.Background(), path, container.OpenOptions{Create: true, SamplingRate: rate})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpen_RequiresCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := Open(context.Background(), path, container.OpenOptions{})
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t, 20000)
	count := int64(40000)
	ts := time.Date(2013, 7, 12, 14, 5, 16, 0, time.UTC)

	require.NoError(t, s.Apply(ctx, []container.Op{
		container.CreateEntry{Entry: container.EntryInfo{Name: "entry_0", Timestamp: ts, UUID: "u0",
			SampleCount: &count, Attrs: map[string]string{"animal": "st11"}}},
		container.CreateDataset{Entry: "entry_0", Dataset: container.DatasetInfo{
			Name: "pen1", Kind: chunk.Sampled, SamplingRate: 20000, Offset: big.NewRat(1, 3), Units: "mV", Growable: true}},
		container.AppendSamples{Entry: "entry_0", Dataset: "pen1", Samples: []float64{0, 1, 2, 3}},
		container.AppendSamples{Entry: "entry_0", Dataset: "pen1", Samples: []float64{4, 5}},
		container.CreateDataset{Entry: "entry_0", Dataset: container.DatasetInfo{
			Name: "spikes", Kind: chunk.Events, SamplingRate: 20000, Units: "samples", Growable: true}},
		container.AppendEvents{Entry: "entry_0", Dataset: "spikes", Events: []chunk.Event{
			{Start: 12, Spike: []float64{-1, 2.5}, Fields: map[string]float64{"pc0": 0.5}},
			{Start: 40},
		}},
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, container.OpenOptions{SamplingRate: 1})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, int64(20000), reopened.Info().SamplingRate, "stored clock rate wins")

	entries, err := reopened.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Timestamp.Equal(ts))
	require.NotNil(t, entries[0].SampleCount)
	assert.Equal(t, count, *entries[0].SampleCount)
	assert.Equal(t, "st11", entries[0].Attrs["animal"])

	dsets, err := reopened.Datasets(ctx, "entry_0")
	require.NoError(t, err)
	require.Len(t, dsets, 2)
	assert.Equal(t, "1/3", dsets[0].Offset.RatString())
	assert.Equal(t, int64(6), dsets[0].Length)
	assert.Equal(t, chunk.Events, dsets[1].Kind)

	data, err := reopened.ReadSamples(ctx, "entry_0", "pen1", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, data)

	events, err := reopened.ReadEvents(ctx, "entry_0", "spikes")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []float64{-1, 2.5}, events[0].Spike)
	assert.Equal(t, 0.5, events[0].Fields["pc0"])
	assert.Equal(t, 40.0, events[1].Start)
}

func TestStore_AtomicBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t, 0)
	require.NoError(t, s.Apply(ctx, []container.Op{
		container.CreateEntry{Entry: container.EntryInfo{Name: "a", Timestamp: time.Unix(0, 0)}},
	}))

	err := s.Apply(ctx, []container.Op{
		container.CreateEntry{Entry: container.EntryInfo{Name: "b", Timestamp: time.Unix(1, 0)}},
		container.CreateEntry{Entry: container.EntryInfo{Name: "a", Timestamp: time.Unix(2, 0)}},
	})
	assert.ErrorIs(t, err, errors.ErrConflict)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t, 0)
	require.NoError(t, s.Apply(ctx, []container.Op{
		container.CreateEntry{Entry: container.EntryInfo{Name: "a", Timestamp: time.Unix(0, 0)}},
		container.CreateDataset{Entry: "a", Dataset: container.DatasetInfo{Name: "fixed", Kind: chunk.Sampled, SamplingRate: 10}},
		container.AppendSamples{Entry: "a", Dataset: "fixed", Samples: []float64{1}},
	}))

	assert.ErrorIs(t, s.Apply(ctx, []container.Op{
		container.AppendSamples{Entry: "a", Dataset: "fixed", Samples: []float64{2}},
	}), errors.ErrCapacity)
	assert.ErrorIs(t, s.Apply(ctx, []container.Op{
		container.AppendEvents{Entry: "a", Dataset: "fixed"},
	}), errors.ErrConflict)
	assert.ErrorIs(t, s.Apply(ctx, []container.Op{
		container.CreateDataset{Entry: "z", Dataset: container.DatasetInfo{Name: "x", Kind: chunk.Events}},
	}), errors.ErrEntryNotFound)

	require.NoError(t, s.Apply(ctx, []container.Op{container.DeleteDataset{Entry: "a", Dataset: "fixed"}}))
	_, err := s.ReadSamples(ctx, "a", "fixed", 0, -1)
	assert.ErrorIs(t, err, errors.ErrDatasetNotFound)
}

func TestStore_CorruptedOffset(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t, 10)
	require.NoError(t, s.Apply(ctx, []container.Op{
		container.CreateEntry{Entry: container.EntryInfo{Name: "a", Timestamp: time.Unix(0, 0)}},
		container.CreateDataset{Entry: "a", Dataset: container.DatasetInfo{Name: "pen", Kind: chunk.Sampled, SamplingRate: 10, Growable: true}},
		container.AppendSamples{Entry: "a", Dataset: "pen", Samples: []float64{1, 2}},
		container.CreateDataset{Entry: "a", Dataset: container.DatasetInfo{Name: "spikes", Kind: chunk.Events, SamplingRate: 10, Growable: true}},
	}))
	_, err := s.db.ExecContext(ctx, `UPDATE datasets SET offset_s = 'half'`)
	require.NoError(t, err)

	_, err = s.Datasets(ctx, "a")
	assert.ErrorIs(t, err, errors.ErrDataCorrupted)
	_, err = s.ReadSamples(ctx, "a", "pen", 0, -1)
	assert.ErrorIs(t, err, errors.ErrDataCorrupted)
	_, err = s.ReadEvents(ctx, "a", "spikes")
	assert.ErrorIs(t, err, errors.ErrDataCorrupted)
	assert.ErrorIs(t, s.Apply(ctx, []container.Op{
		container.AppendSamples{Entry: "a", Dataset: "pen", Samples: []float64{3}},
	}), errors.ErrDataCorrupted)
	assert.ErrorIs(t, s.Apply(ctx, []container.Op{
		container.CreateDataset{Entry: "a", Dataset: container.DatasetInfo{Name: "pen", Kind: chunk.Sampled, SamplingRate: 10}},
	}), errors.ErrDataCorrupted)
}

func TestStore_MigrationsIdempotent(t *testing.T) {
	s, _ := openTemp(t, 0)
	applied, err := migrate(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var versions int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions))
	ms, err := loadMigrations()
	require.NoError(t, err)
	assert.Equal(t, len(ms), versions)
}

func TestStore_ThroughOpener(t *testing.T) {
	ctx := context.Background()
	opener := container.NewOpener()
	Register(opener)
	registry := metric.NewMetricsRegistry()

	path := filepath.Join(t.TempDir(), "x.db")
	c, err := opener.Open(ctx, path, container.OpenOptions{Create: true, SamplingRate: 1000, Metrics: registry})
	require.NoError(t, err)
	require.NoError(t, c.Apply(ctx, []container.Op{
		container.CreateEntry{Entry: container.EntryInfo{Name: "a", Timestamp: time.Unix(0, 0)}},
	}))
	assert.Equal(t, container.BackendSQLite, c.Info().Backend)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
