package containerreader

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"math/big"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/register"
	"github.com/c360/mspikes/storage/container"
)

// Reader is a source replaying the entries of a container in time order.
// Each entry yields a structure chunk followed by its selected datasets:
// sampled datasets in chunks of ChunkSize samples, event datasets as one
// chunk.
type Reader struct {
	component.Base
	cfg      Config
	store    container.Container
	register *register.Register
	metrics  *readerMetrics
	channels matcher

	start, stop *big.Rat // nil when unbounded
	key         string
	entries     []placedEntry
	next        int
	queue       []*readTask
	closed      bool
}

// readTask tracks the unread part of one dataset.
type readTask struct {
	entry    string
	ds       container.DatasetInfo
	origin   *big.Rat // dataset start in seconds
	pos, end int64
}

// NewReader opens the container named by cfg and orders its entries.
func NewReader(ctx context.Context, name string, cfg Config, deps component.Dependencies) (*Reader, error) {
	opener := deps.Containers
	if opener == nil {
		opener = container.NewOpener()
	}
	reg := deps.Register
	if reg == nil {
		reg = register.New(deps.GetLogger())
	}

	store, err := opener.Open(ctx, cfg.File, container.OpenOptions{
		Backend: cfg.Backend,
		Logger:  deps.GetLogger(),
		Metrics: deps.MetricsRegistry,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ContainerReader", "NewReader", "open container")
	}

	metrics, err := newReaderMetrics(deps.MetricsRegistry, name)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize container_reader metrics", "error", err)
		metrics = nil
	}

	r := &Reader{
		Base:     component.NewBase(name, deps),
		cfg:      cfg,
		store:    store,
		register: reg,
		metrics:  metrics,
		channels: newMatcher(cfg.Channels),
	}
	if len(cfg.Times) == 2 {
		r.start = chunk.FromDecimal(cfg.Times[0])
		r.stop = chunk.FromDecimal(cfg.Times[1])
	}

	all, err := store.Entries(ctx)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "ContainerReader", "NewReader", "list entries")
	}
	entryp := newMatcher(cfg.Entries)
	var selected []container.EntryInfo
	for _, e := range all {
		if entryp.match(e.Name) {
			selected = append(selected, e)
		}
	}

	rate := store.Info().SamplingRate
	r.key = orderKey(selected, rate, cfg.UseTimestamp)
	r.entries = placeEntries(selected, r.key, rate, r.Logger())
	r.metrics.recordSkipped(len(selected) - len(r.entries))
	r.Logger().Info("Opened container", "file", cfg.File, "entries", len(r.entries),
		"order", r.key, "sampling_rate", rate)
	return r, nil
}

// Order returns the attribute used to order entries.
func (r *Reader) Order() string {
	return r.key
}

// Next delivers the next chunk to the targets and returns it.
func (r *Reader) Next(ctx context.Context) (*chunk.Chunk, error) {
	if r.closed {
		return nil, io.EOF
	}
	for {
		if len(r.queue) == 0 {
			if r.next >= len(r.entries) {
				return nil, io.EOF
			}
			e := r.entries[r.next]
			r.next++
			c, err := r.openEntry(ctx, e)
			if err != nil {
				return nil, r.Fail(err)
			}
			if c != nil {
				return c, r.emit(ctx, c)
			}
			continue
		}

		t := r.queue[0]
		c, done, err := r.read(ctx, t)
		if done {
			r.queue = r.queue[1:]
		}
		if err != nil {
			return nil, r.Fail(err)
		}
		if c != nil {
			return c, r.emit(ctx, c)
		}
	}
}

func (r *Reader) emit(ctx context.Context, c *chunk.Chunk) error {
	r.metrics.recordChunk(c.Kind.String())
	return r.Emit(ctx, c)
}

// openEntry queues the selected datasets of e and returns its structure
// chunk, or nil when e lies outside the time window.
func (r *Reader) openEntry(ctx context.Context, e placedEntry) (*chunk.Chunk, error) {
	begin := e.seconds()
	if r.stop != nil && begin.Cmp(r.stop) >= 0 {
		return nil, nil
	}
	if r.start != nil && r.next < len(r.entries) && r.entries[r.next].seconds().Cmp(r.start) <= 0 {
		return nil, nil
	}

	dsets, err := r.store.Datasets(ctx, e.info.Name)
	if err != nil {
		return nil, errors.Wrap(err, "ContainerReader", "Next", "list datasets of "+e.info.Name)
	}
	for _, ds := range dsets {
		if !r.channels.match(ds.Name) {
			continue
		}
		t, err := r.task(e, ds)
		if err != nil {
			return nil, err
		}
		r.registerChannel(ds)
		r.queue = append(r.queue, t)
	}

	info := chunk.StructureInfo{
		UUID:        e.info.UUID,
		SampleCount: e.info.SampleCount,
		Attrs:       e.info.Attrs,
	}
	if !e.info.Timestamp.IsZero() {
		ts := e.info.Timestamp
		info.Timestamp = &ts
	}
	r.Logger().Debug("Reading entry", "entry", e.info.Name, "offset", begin.RatString(), "datasets", len(r.queue))
	return chunk.NewStructure(e.info.Name, begin, r.store.Info().SamplingRate, info), nil
}

// task positions ds on the timeline and restricts it to the time window.
func (r *Reader) task(e placedEntry, ds container.DatasetInfo) (*readTask, error) {
	var dsTime *big.Rat
	if ds.Offset != nil {
		dsTime = new(big.Rat).Set(ds.Offset)
		if ds.SamplingRate > 0 {
			dsTime.Mul(dsTime, new(big.Rat).SetInt64(ds.SamplingRate))
		}
	}
	origin, err := container.DataOffset(e.time, e.rate, dsTime, ds.SamplingRate)
	if err != nil {
		return nil, errors.Wrap(err, "ContainerReader", "Next", fmt.Sprintf("place %s/%s", e.info.Name, ds.Name))
	}

	t := &readTask{entry: e.info.Name, ds: ds, origin: origin, end: ds.Length}
	if ds.Kind != chunk.Sampled {
		return t, nil
	}
	if ds.SamplingRate <= 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: sampled dataset %s/%s has no sampling rate",
			errors.ErrInvalidData, e.info.Name, ds.Name), "ContainerReader", "Next", "place dataset")
	}
	if r.start != nil {
		t.pos = max(chunk.CeilSamples(new(big.Rat).Sub(r.start, origin), ds.SamplingRate), 0)
	}
	if r.stop != nil {
		t.end = min(chunk.CeilSamples(new(big.Rat).Sub(r.stop, origin), ds.SamplingRate), ds.Length)
	}
	return t, nil
}

// read returns the next chunk of t and whether t is exhausted.
func (r *Reader) read(ctx context.Context, t *readTask) (*chunk.Chunk, bool, error) {
	if t.ds.Kind == chunk.Events {
		events, err := r.store.ReadEvents(ctx, t.entry, t.ds.Name)
		if err != nil {
			return nil, true, errors.Wrap(err, "ContainerReader", "Next", "read events")
		}
		events = r.window(events, t)
		if len(events) == 0 {
			return nil, true, nil
		}
		return chunk.NewEvents(t.ds.Name, t.origin, t.ds.SamplingRate, events), true, nil
	}

	if t.pos >= t.end {
		return nil, true, nil
	}
	stop := min(t.pos+r.cfg.ChunkSize, t.end)
	samples, err := r.store.ReadSamples(ctx, t.entry, t.ds.Name, t.pos, stop)
	if err != nil {
		return nil, true, errors.Wrap(err, "ContainerReader", "Next", "read samples")
	}
	c := chunk.NewSampled(t.ds.Name, chunk.ToSeconds(t.pos, t.ds.SamplingRate, t.origin), t.ds.SamplingRate, samples)
	t.pos = stop
	return c, t.pos >= t.end, nil
}

// window keeps the events whose time falls in [start, stop).
func (r *Reader) window(events []chunk.Event, t *readTask) []chunk.Event {
	if r.start == nil {
		return events
	}
	out := events[:0:0]
	for _, ev := range events {
		at := chunk.FromFloat(ev.Start)
		if t.ds.SamplingRate > 0 {
			at.Quo(at, new(big.Rat).SetInt64(t.ds.SamplingRate))
		}
		at.Add(at, t.origin)
		if at.Cmp(r.start) >= 0 && at.Cmp(r.stop) < 0 {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Reader) registerChannel(ds container.DatasetInfo) {
	props := r.register.Ensure(ds.Name, register.Properties{
		UUID:     ds.UUID,
		Units:    ds.Units,
		DataType: ds.Kind.String(),
	})
	if ds.UUID != "" && props.UUID != ds.UUID {
		r.Logger().Warn("Channel uuid differs from register", "channel", ds.Name,
			"dataset_uuid", ds.UUID, "registered_uuid", props.UUID)
	}
}

// Close closes the container and the targets.
func (r *Reader) Close(ctx context.Context) error {
	if r.closed {
		return r.Base.Close(ctx)
	}
	r.closed = true
	var err error
	if cerr := r.store.Close(); cerr != nil {
		err = errors.Wrap(cerr, "ContainerReader", "Close", "close container")
	}
	return stderrors.Join(err, r.Base.Close(ctx))
}
