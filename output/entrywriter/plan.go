package entrywriter

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/register"
	"github.com/c360/mspikes/storage/container"
)

// entryState is the writer's view of one entry.
type entryState struct {
	info     container.EntryInfo
	offset   *big.Rat
	datasets map[string]container.DatasetInfo // nil until loaded
}

// plan stages the writes for one chunk. Entries it touches are copied, so
// the writer state only changes when the batch has been applied.
type plan struct {
	w        *Writer
	table    Table
	entries  map[string]*entryState
	autoNext int
	ops      []container.Op
	created  map[string]int // entries created, by reason
	splits   int
}

func (w *Writer) begin() *plan {
	return &plan{
		w:        w,
		table:    w.table.clone(),
		entries:  make(map[string]*entryState),
		autoNext: w.autoNext,
		created:  make(map[string]int),
	}
}

func (w *Writer) commit(p *plan) {
	w.table = p.table
	maps.Copy(w.entries, p.entries)
	w.autoNext = p.autoNext
	for reason, n := range p.created {
		w.metrics.recordEntries(reason, n)
	}
	w.metrics.recordSplits(p.splits)
}

func (p *plan) taken(name string) bool {
	if _, ok := p.entries[name]; ok {
		return true
	}
	_, ok := p.w.entries[name]
	return ok
}

// info returns the entry without loading its datasets.
func (p *plan) info(name string) (*entryState, bool) {
	if e, ok := p.entries[name]; ok {
		return e, true
	}
	e, ok := p.w.entries[name]
	return e, ok
}

// entry returns a writable copy of the named entry with its datasets loaded.
func (p *plan) entry(ctx context.Context, name string) (*entryState, error) {
	if e, ok := p.entries[name]; ok {
		return e, nil
	}
	base, ok := p.w.entries[name]
	if !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %q", errors.ErrEntryNotFound, name),
			"EntryWriter", "entry", "resolve entry")
	}
	if base.datasets == nil {
		list, err := p.w.store.Datasets(ctx, name)
		if err != nil {
			return nil, errors.Wrap(err, "EntryWriter", "entry", "load datasets")
		}
		base.datasets = make(map[string]container.DatasetInfo, len(list))
		for _, ds := range list {
			base.datasets[ds.Name] = ds
		}
	}
	cp := &entryState{info: base.info, offset: base.offset, datasets: maps.Clone(base.datasets)}
	p.entries[name] = cp
	return cp, nil
}

func (p *plan) createEntry(info container.EntryInfo, offset *big.Rat, reason string) *entryState {
	e := &entryState{info: info, offset: new(big.Rat).Set(offset), datasets: make(map[string]container.DatasetInfo)}
	p.ops = append(p.ops, container.CreateEntry{Entry: info})
	p.entries[info.Name] = e
	p.table.Insert(offset, info.Name)
	p.created[reason]++
	p.w.Logger().Info("Creating entry", "entry", info.Name, "offset", offset.FloatString(6), "reason", reason)
	return e
}

// newEntry builds the attributes of an entry created at offset without a
// structure chunk.
func (p *plan) newEntry(name string, offset *big.Rat) container.EntryInfo {
	return container.EntryInfo{
		Name:        name,
		Timestamp:   p.timestampAt(offset),
		UUID:        uuid.NewString(),
		SampleCount: p.sampleCount(offset),
	}
}

// timestampAt derives the wall-clock time of offset from the nearest known
// entry. The first entry of an empty container is stamped with the clock.
func (p *plan) timestampAt(offset *big.Rat) time.Time {
	name, eoff, ok := p.table.Lookup(offset)
	if !ok {
		name, eoff, ok = p.table.First()
	}
	if !ok {
		return p.w.now().UTC()
	}
	ref, _ := p.info(name)
	t := chunk.FromTime(ref.info.Timestamp)
	t.Add(t, new(big.Rat).Sub(offset, eoff))
	return chunk.ToTime(t)
}

func (p *plan) sampleCount(offset *big.Rat) *int64 {
	rate := p.w.store.Info().SamplingRate
	if rate <= 0 || !chunk.IsWholeSamples(offset, rate) {
		return nil
	}
	n := chunk.ToSamples(offset, rate)
	return &n
}

// nextName names the entry that continues name after a gap.
func (p *plan) nextName(name string) string {
	if base := p.w.cfg.AutoEntry; base != "" {
		return p.nextAuto()
	}
	return successor(name, p.taken)
}

func (p *plan) nextAuto() string {
	name := nextFree(p.w.cfg.AutoEntry, p.autoNext, p.taken)
	_, n := splitName(name)
	p.autoNext = n + 1
	return name
}

// resolve returns the entry that chunks at offset belong to, creating an
// automatic entry when offset precedes every entry and that is allowed.
func (p *plan) resolve(ctx context.Context, c *chunk.Chunk) (*entryState, error) {
	name, _, ok := p.table.Lookup(c.Offset)
	if ok {
		return p.entry(ctx, name)
	}
	if p.w.cfg.AutoEntry == "" {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %s and auto_entry is not set", errors.ErrBoundary, c),
			"EntryWriter", "resolve", "find entry")
	}
	return p.createEntry(p.newEntry(p.nextAuto(), c.Offset), c.Offset, "auto"), nil
}

func (p *plan) newDataset(e *entryState, id string, kind chunk.Kind, rate int64, offset *big.Rat) container.DatasetInfo {
	props := p.w.register.Ensure(id, register.Properties{})
	units := props.Units
	if kind == chunk.Events {
		units = "s"
		if rate > 0 {
			units = "samples"
		}
	}
	ds := container.DatasetInfo{
		Name:         id,
		Kind:         kind,
		SamplingRate: rate,
		Offset:       new(big.Rat).Sub(offset, e.offset),
		Units:        units,
		UUID:         props.UUID,
		Growable:     true,
	}
	p.ops = append(p.ops, container.CreateDataset{Entry: e.info.Name, Dataset: ds})
	return ds
}

func (p *plan) structure(c *chunk.Chunk) error {
	var info chunk.StructureInfo
	if c.Structure != nil {
		info = *c.Structure
	}

	if e, ok := p.info(c.ID); ok {
		if info.Timestamp != nil && !e.info.Timestamp.IsZero() &&
			info.Timestamp.UnixMicro() != e.info.Timestamp.UnixMicro() {
			return conflict("entry %q exists with timestamp %s, chunk has %s",
				c.ID, e.info.Timestamp.Format(time.RFC3339Nano), info.Timestamp.Format(time.RFC3339Nano))
		}
		if info.UUID != "" && e.info.UUID != "" && info.UUID != e.info.UUID {
			return conflict("entry %q exists with uuid %s, chunk has %s", c.ID, e.info.UUID, info.UUID)
		}
		return nil
	}

	entry := p.newEntry(c.ID, c.Offset)
	if info.Timestamp != nil {
		entry.Timestamp = info.Timestamp.UTC()
	}
	if info.UUID != "" {
		entry.UUID = info.UUID
	}
	if info.SampleCount != nil {
		n := *info.SampleCount
		entry.SampleCount = &n
	}
	entry.Attrs = maps.Clone(info.Attrs)
	p.createEntry(entry, c.Offset, "structure")
	return nil
}

func (p *plan) samples(ctx context.Context, c *chunk.Chunk) error {
	if c.SamplingRate <= 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: sampled chunk %s has no sampling rate", errors.ErrInvalidData, c),
			"EntryWriter", "samples", "check chunk")
	}
	e, err := p.resolve(ctx, c)
	if err != nil {
		return err
	}

	ds, exists := e.datasets[c.ID]
	if exists {
		if ds.Kind != chunk.Sampled || ds.SamplingRate != c.SamplingRate {
			return conflict("dataset %s/%s is %s at %d Hz, chunk %s is sampled at %d Hz",
				e.info.Name, c.ID, ds.Kind, ds.SamplingRate, c, c.SamplingRate)
		}
		end := datasetEnd(e, ds)
		switch c.Offset.Cmp(end) {
		case -1:
			return conflict("chunk %s overlaps dataset %s/%s ending at %s",
				c, e.info.Name, c.ID, end.FloatString(6))
		case 1:
			p.w.Logger().Debug("Gap in sampled data, starting a new entry",
				"chunk", c.String(), "entry", e.info.Name, "dataset_end", end.FloatString(6))
			next := p.nextName(e.info.Name)
			e = p.createEntry(p.newEntry(next, c.Offset), c.Offset, "gap")
			exists = false
		default:
			if !ds.Growable && ds.Length > 0 {
				return errors.WrapFatal(fmt.Errorf("%w: dataset %s/%s is not growable", errors.ErrCapacity, e.info.Name, c.ID),
					"EntryWriter", "samples", "append samples")
			}
		}
	}
	if !exists {
		ds = p.newDataset(e, c.ID, chunk.Sampled, c.SamplingRate, c.Offset)
	}

	p.ops = append(p.ops, container.AppendSamples{Entry: e.info.Name, Dataset: c.ID, Samples: c.Samples})
	ds.Length += int64(len(c.Samples))
	e.datasets[c.ID] = ds
	return nil
}

// events writes the events of c that fall before the next entry and
// resubmits the rest at that entry's offset.
func (p *plan) events(ctx context.Context, c *chunk.Chunk) error {
	e, err := p.resolve(ctx, c)
	if err != nil {
		return err
	}
	rate := c.SamplingRate
	boundary := p.table.NextAfter(e.offset)

	var keep, rest []chunk.Event
	for _, ev := range c.Events {
		if boundary != nil && eventTime(c.Offset, ev.Start, rate).Cmp(boundary) >= 0 {
			rest = append(rest, ev)
		} else {
			keep = append(keep, ev)
		}
	}

	ds, exists := e.datasets[c.ID]
	if exists {
		if ds.Kind != chunk.Events || ds.SamplingRate != rate {
			return conflict("dataset %s/%s is %s at %d Hz, chunk %s has events at %d Hz",
				e.info.Name, c.ID, ds.Kind, ds.SamplingRate, c, rate)
		}
		if !ds.Growable && ds.Length > 0 && len(keep) > 0 {
			return errors.WrapFatal(fmt.Errorf("%w: dataset %s/%s is not growable", errors.ErrCapacity, e.info.Name, c.ID),
				"EntryWriter", "events", "append events")
		}
	}

	switch {
	case len(keep) > 0:
		if !exists {
			ds = p.newDataset(e, c.ID, chunk.Events, rate, c.Offset)
		}
		origin := new(big.Rat).Add(e.offset, ds.Offset)
		delta, _ := chunk.SamplesBetween(origin, c.Offset, rate).Float64()
		p.ops = append(p.ops, container.AppendEvents{Entry: e.info.Name, Dataset: c.ID, Events: chunk.ShiftEvents(keep, delta)})
		ds.Length += int64(len(keep))
		e.datasets[c.ID] = ds
	case exists && ds.Length == 0:
		p.ops = append(p.ops, container.DeleteDataset{Entry: e.info.Name, Dataset: c.ID})
		delete(e.datasets, c.ID)
	}

	if len(rest) == 0 {
		return nil
	}
	p.splits++
	delta, _ := chunk.SamplesBetween(c.Offset, boundary, rate).Float64()
	p.w.Logger().Debug("Splitting events at entry boundary",
		"chunk", c.String(), "boundary", boundary.FloatString(6), "before", len(keep), "after", len(rest))
	return p.events(ctx, c.WithEvents(boundary, chunk.ShiftEvents(rest, -delta)))
}

// datasetEnd returns the time just past the last stored sample.
func datasetEnd(e *entryState, ds container.DatasetInfo) *big.Rat {
	end := new(big.Rat).Add(e.offset, ds.Offset)
	return end.Add(end, chunk.SamplesToSeconds(ds.Length, ds.SamplingRate))
}

// eventTime converts an event start to seconds on the container timeline.
func eventTime(offset *big.Rat, start float64, rate int64) *big.Rat {
	t := chunk.FromFloat(start)
	if rate > 0 {
		t.Quo(t, new(big.Rat).SetInt64(rate))
	}
	return t.Add(t, offset)
}

func conflict(format string, args ...any) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrConflict, fmt.Sprintf(format, args...)),
		"EntryWriter", "Send", "place chunk")
}
