// Package sqlitestore implements container.Container on a single SQLite
// file. Entries and datasets are rows; sampled data is stored as one
// little-endian float64 blob per append and events as one row each.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"os"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/storage/container"
)

const (
	busyTimeoutMS = 10_000
	rateKey       = "sampling_rate"
)

// Store is a SQLite-backed container.
type Store struct {
	db      *sql.DB
	info    container.Info
	logger  *slog.Logger
	metrics *storeMetrics

	closeOnce sync.Once
	closeErr  error
}

// Register adds the sqlite backend to opener.
func Register(opener *container.Backends) {
	opener.Register(container.BackendSQLite, func(ctx context.Context, path string, opts container.OpenOptions) (container.Container, error) {
		return Open(ctx, path, opts)
	})
}

// Open opens the store at path, creating it when opts.Create is set, and
// applies pending migrations. The clock rate is recorded when the store is
// created; an existing store keeps its own.
func Open(ctx context.Context, path string, opts container.OpenOptions) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlitestore", "path", path)

	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) || !opts.Create {
				return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err),
					"Store", "Open", "stat container file")
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "Open", "open database")
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	applied, err := migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if applied > 0 {
		logger.Debug("Applied migrations", "count", applied)
	}

	rate, err := loadRate(ctx, db, opts.SamplingRate)
	if err != nil {
		db.Close()
		return nil, err
	}

	metrics, err := newStoreMetrics(opts.Metrics, path)
	if err != nil {
		logger.Warn("Store metrics disabled", "error", err)
		metrics = nil
	}

	logger.Info("Opened container", "sampling_rate", rate)
	return &Store{
		db:      db,
		info:    container.Info{Backend: container.BackendSQLite, Path: path, SamplingRate: rate},
		logger:  logger,
		metrics: metrics,
	}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return errors.WrapFatal(err, "Store", "Open", p)
		}
	}
	return nil
}

func loadRate(ctx context.Context, db *sql.DB, rate int64) (int64, error) {
	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM container_info WHERE key = ?`, rateKey).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err := db.ExecContext(ctx, `INSERT INTO container_info (key, value) VALUES (?, ?)`,
			rateKey, strconv.FormatInt(rate, 10))
		if err != nil {
			return 0, errors.WrapFatal(err, "Store", "Open", "record sampling rate")
		}
		return rate, nil
	case err != nil:
		return 0, errors.WrapFatal(err, "Store", "Open", "read sampling rate")
	}
	n, err := strconv.ParseInt(stored, 10, 64)
	if err != nil {
		return 0, errors.WrapFatal(fmt.Errorf("%w: sampling rate %q", errors.ErrDataCorrupted, stored),
			"Store", "Open", "parse sampling rate")
	}
	return n, nil
}

// Info returns the container description
func (s *Store) Info() container.Info {
	return s.info
}

// Entries returns all entries in creation order
func (s *Store) Entries(ctx context.Context) ([]container.EntryInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, timestamp_us, uuid, sample_count, attrs FROM entries ORDER BY id`)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Entries", "query entries")
	}
	defer rows.Close()

	var out []container.EntryInfo
	for rows.Next() {
		var (
			e     container.EntryInfo
			usec  int64
			count sql.NullInt64
			attrs string
		)
		if err := rows.Scan(&e.Name, &usec, &e.UUID, &count, &attrs); err != nil {
			return nil, errors.WrapTransient(err, "Store", "Entries", "scan entry")
		}
		e.Timestamp = time.UnixMicro(usec).UTC()
		if count.Valid {
			n := count.Int64
			e.SampleCount = &n
		}
		if err := json.Unmarshal([]byte(attrs), &e.Attrs); err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: attrs of %q: %v", errors.ErrDataCorrupted, e.Name, err),
				"Store", "Entries", "decode attrs")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Datasets returns the datasets of entry in creation order
func (s *Store) Datasets(ctx context.Context, entry string) ([]container.DatasetInfo, error) {
	entryID, err := entryID(ctx, s.db, entry)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "Datasets", "find entry")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, kind, sampling_rate, offset_s, units, uuid, growable, length
		FROM datasets WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Datasets", "query datasets")
	}
	defer rows.Close()

	var out []container.DatasetInfo
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (container.DatasetInfo, error) {
	var (
		d      container.DatasetInfo
		kind   string
		offset string
	)
	if err := row.Scan(&d.Name, &kind, &d.SamplingRate, &offset, &d.Units, &d.UUID, &d.Growable, &d.Length); err != nil {
		return d, errors.WrapTransient(err, "Store", "Datasets", "scan dataset")
	}
	d.Kind = parseKind(kind)
	var ok bool
	if d.Offset, ok = new(big.Rat).SetString(offset); !ok {
		return d, errors.WrapFatal(fmt.Errorf("%w: offset %q of %q", errors.ErrDataCorrupted, offset, d.Name),
			"Store", "Datasets", "parse offset")
	}
	return d, nil
}

// ReadSamples returns samples [start, stop) of a sampled dataset
func (s *Store) ReadSamples(ctx context.Context, entry, dataset string, start, stop int64) ([]float64, error) {
	began := time.Now()
	defer func() { s.metrics.observeRead("samples", time.Since(began).Seconds()) }()

	id, info, err := datasetRow(ctx, s.db, entry, dataset)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "ReadSamples", "find dataset")
	}
	if stop < 0 || stop > info.Length {
		stop = info.Length
	}
	if start < 0 || start > stop {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: range [%d, %d) of %d samples", errors.ErrInvalidData, start, stop, info.Length),
			"Store", "ReadSamples", "check range")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT start, count, data FROM segments
		WHERE dataset_id = ? AND start < ? AND start + count > ? ORDER BY start`, id, stop, start)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ReadSamples", "query segments")
	}
	defer rows.Close()

	out := make([]float64, 0, stop-start)
	for rows.Next() {
		var (
			segStart, count int64
			blob            []byte
		)
		if err := rows.Scan(&segStart, &count, &blob); err != nil {
			return nil, errors.WrapTransient(err, "Store", "ReadSamples", "scan segment")
		}
		values, err := decodeFloats(blob, count)
		if err != nil {
			return nil, errors.WrapFatal(err, "Store", "ReadSamples", "decode segment")
		}
		lo := max(start-segStart, 0)
		hi := min(stop-segStart, count)
		out = append(out, values[lo:hi]...)
	}
	return out, rows.Err()
}

// ReadEvents returns every event of an events dataset
func (s *Store) ReadEvents(ctx context.Context, entry, dataset string) ([]chunk.Event, error) {
	began := time.Now()
	defer func() { s.metrics.observeRead("events", time.Since(began).Seconds()) }()

	id, _, err := datasetRow(ctx, s.db, entry, dataset)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "ReadEvents", "find dataset")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT start, spike, fields FROM events WHERE dataset_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ReadEvents", "query events")
	}
	defer rows.Close()

	var out []chunk.Event
	for rows.Next() {
		var (
			ev     chunk.Event
			spike  []byte
			fields sql.NullString
		)
		if err := rows.Scan(&ev.Start, &spike, &fields); err != nil {
			return nil, errors.WrapTransient(err, "Store", "ReadEvents", "scan event")
		}
		if len(spike) > 0 {
			if ev.Spike, err = decodeFloats(spike, int64(len(spike)/8)); err != nil {
				return nil, errors.WrapFatal(err, "Store", "ReadEvents", "decode waveform")
			}
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &ev.Fields); err != nil {
				return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrDataCorrupted, err),
					"Store", "ReadEvents", "decode fields")
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database once
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.metrics.unregister()
		if err := s.db.Close(); err != nil {
			s.closeErr = errors.WrapTransient(err, "Store", "Close", "close database")
		}
	})
	return s.closeErr
}

func encodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeFloats(buf []byte, count int64) ([]float64, error) {
	if int64(len(buf)) != 8*count {
		return nil, fmt.Errorf("%w: blob of %d bytes for %d values", errors.ErrDataCorrupted, len(buf), count)
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func entryID(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM entries WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrEntryNotFound, name), "Store", "entryID", "find entry")
	}
	if err != nil {
		return 0, errors.WrapTransient(err, "Store", "entryID", "query entry")
	}
	return id, nil
}

func datasetRow(ctx context.Context, q querier, entry, dataset string) (int64, container.DatasetInfo, error) {
	row := q.QueryRowContext(ctx, `SELECT d.id, d.name, d.kind, d.sampling_rate, d.offset_s, d.units, d.uuid, d.growable, d.length
		FROM datasets d JOIN entries e ON e.id = d.entry_id WHERE e.name = ? AND d.name = ?`, entry, dataset)
	var id int64
	var info container.DatasetInfo
	var kind, offset string
	err := row.Scan(&id, &info.Name, &kind, &info.SamplingRate, &offset, &info.Units, &info.UUID, &info.Growable, &info.Length)
	if err == sql.ErrNoRows {
		return 0, info, errors.WrapInvalid(fmt.Errorf("%w: %q in entry %q", errors.ErrDatasetNotFound, dataset, entry),
			"Store", "datasetRow", "find dataset")
	}
	if err != nil {
		return 0, info, errors.WrapTransient(err, "Store", "datasetRow", "query dataset")
	}
	info.Kind = parseKind(kind)
	var ok bool
	if info.Offset, ok = new(big.Rat).SetString(offset); !ok {
		return 0, info, errors.WrapFatal(fmt.Errorf("%w: offset %q of %q", errors.ErrDataCorrupted, offset, dataset),
			"Store", "datasetRow", "parse offset")
	}
	return id, info, nil
}

func parseKind(kind string) chunk.Kind {
	if kind == chunk.Events.String() {
		return chunk.Events
	}
	return chunk.Sampled
}
