package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/storage/container"
)

// Apply runs ops in one transaction. Any failure rolls back the whole batch.
func (s *Store) Apply(ctx context.Context, ops []container.Op) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.metrics.recordBatch("error")
		return errors.WrapTransient(err, "Store", "Apply", "begin transaction")
	}

	for i, op := range ops {
		if err := applyOp(ctx, tx, op); err != nil {
			_ = tx.Rollback()
			s.metrics.recordBatch("rejected")
			return errors.Wrap(err, "Store", "Apply", fmt.Sprintf("op %d (%T)", i, op))
		}
	}
	if err := tx.Commit(); err != nil {
		s.metrics.recordBatch("error")
		return errors.WrapTransient(err, "Store", "Apply", "commit transaction")
	}

	s.metrics.recordBatch("committed")
	for _, op := range ops {
		s.metrics.recordOp(opName(op))
	}
	return nil
}

func opName(op container.Op) string {
	switch op.(type) {
	case container.CreateEntry:
		return "create_entry"
	case container.CreateDataset:
		return "create_dataset"
	case container.AppendSamples:
		return "append_samples"
	case container.AppendEvents:
		return "append_events"
	case container.DeleteDataset:
		return "delete_dataset"
	}
	return "unknown"
}

func applyOp(ctx context.Context, tx *sql.Tx, op container.Op) error {
	switch op := op.(type) {
	case container.CreateEntry:
		return createEntry(ctx, tx, op.Entry)
	case container.CreateDataset:
		return createDataset(ctx, tx, op.Entry, op.Dataset)
	case container.AppendSamples:
		return appendSamples(ctx, tx, op)
	case container.AppendEvents:
		return appendEvents(ctx, tx, op)
	case container.DeleteDataset:
		id, _, err := datasetRow(ctx, tx, op.Entry, op.Dataset)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id); err != nil {
			return errors.WrapTransient(err, "Store", "Apply", "delete dataset")
		}
		return nil
	}
	return errors.WrapInvalid(fmt.Errorf("unsupported op %T", op), "Store", "Apply", "dispatch op")
}

func createEntry(ctx context.Context, tx *sql.Tx, e container.EntryInfo) error {
	if err := container.ValidateEntry(e); err != nil {
		return err
	}
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE name = ?`, e.Name).Scan(&exists); err != nil {
		return errors.WrapTransient(err, "Store", "Apply", "check entry")
	}
	if exists > 0 {
		return errors.WrapFatal(fmt.Errorf("%w: entry %q already exists", errors.ErrConflict, e.Name),
			"Store", "Apply", "create entry")
	}

	attrs := e.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return errors.WrapInvalid(err, "Store", "Apply", "encode attrs")
	}
	var count sql.NullInt64
	if e.SampleCount != nil {
		count = sql.NullInt64{Int64: *e.SampleCount, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO entries (name, timestamp_us, uuid, sample_count, attrs) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.Timestamp.UnixMicro(), e.UUID, count, string(encoded))
	if err != nil {
		return errors.WrapTransient(err, "Store", "Apply", "insert entry")
	}
	return nil
}

func createDataset(ctx context.Context, tx *sql.Tx, entry string, d container.DatasetInfo) error {
	id, err := entryID(ctx, tx, entry)
	if err != nil {
		return err
	}
	if err := container.ValidateDataset(d); err != nil {
		return err
	}
	switch _, _, err := datasetRow(ctx, tx, entry, d.Name); {
	case err == nil:
		return errors.WrapFatal(fmt.Errorf("%w: dataset %q already exists in entry %q", errors.ErrConflict, d.Name, entry),
			"Store", "Apply", "create dataset")
	case !stderrors.Is(err, errors.ErrDatasetNotFound):
		return err
	}
	offset := "0"
	if d.Offset != nil {
		offset = d.Offset.RatString()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO datasets (entry_id, name, kind, sampling_rate, offset_s, units, uuid, growable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, id, d.Name, d.Kind.String(), d.SamplingRate, offset, d.Units, d.UUID, d.Growable)
	if err != nil {
		return errors.WrapTransient(err, "Store", "Apply", "insert dataset")
	}
	return nil
}

func appendTarget(ctx context.Context, tx *sql.Tx, entry, dataset string, kind chunk.Kind) (int64, container.DatasetInfo, error) {
	id, info, err := datasetRow(ctx, tx, entry, dataset)
	if err != nil {
		return 0, info, err
	}
	if info.Kind != kind {
		return 0, info, errors.WrapFatal(
			fmt.Errorf("%w: dataset %q in entry %q holds %s data, not %s", errors.ErrConflict, dataset, entry, info.Kind, kind),
			"Store", "Apply", "check dataset kind")
	}
	if !info.Growable && info.Length > 0 {
		return 0, info, errors.WrapFatal(fmt.Errorf("%w: dataset %q is not growable", errors.ErrCapacity, dataset),
			"Store", "Apply", "extend dataset")
	}
	return id, info, nil
}

func appendSamples(ctx context.Context, tx *sql.Tx, op container.AppendSamples) error {
	id, info, err := appendTarget(ctx, tx, op.Entry, op.Dataset, chunk.Sampled)
	if err != nil || len(op.Samples) == 0 {
		return err
	}
	n := int64(len(op.Samples))
	if _, err := tx.ExecContext(ctx, `INSERT INTO segments (dataset_id, start, count, data) VALUES (?, ?, ?, ?)`,
		id, info.Length, n, encodeFloats(op.Samples)); err != nil {
		return errors.WrapTransient(err, "Store", "Apply", "insert segment")
	}
	return setLength(ctx, tx, id, info.Length+n)
}

func appendEvents(ctx context.Context, tx *sql.Tx, op container.AppendEvents) error {
	id, info, err := appendTarget(ctx, tx, op.Entry, op.Dataset, chunk.Events)
	if err != nil || len(op.Events) == 0 {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (dataset_id, seq, start, spike, fields) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.WrapTransient(err, "Store", "Apply", "prepare event insert")
	}
	defer stmt.Close()

	for i, ev := range op.Events {
		var spike []byte
		if len(ev.Spike) > 0 {
			spike = encodeFloats(ev.Spike)
		}
		var fields sql.NullString
		if len(ev.Fields) > 0 {
			b, err := json.Marshal(ev.Fields)
			if err != nil {
				return errors.WrapInvalid(err, "Store", "Apply", "encode event fields")
			}
			fields = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, info.Length+int64(i), ev.Start, spike, fields); err != nil {
			return errors.WrapTransient(err, "Store", "Apply", "insert event")
		}
	}
	return setLength(ctx, tx, id, info.Length+int64(len(op.Events)))
}

func setLength(ctx context.Context, tx *sql.Tx, id, length int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE datasets SET length = ? WHERE id = ?`, length, id); err != nil {
		return errors.WrapTransient(err, "Store", "Apply", "update dataset length")
	}
	return nil
}
