package entrywriter

import (
	"context"
	stderrors "errors"
	"math/big"
	"time"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/register"
	"github.com/c360/mspikes/storage/container"
)

// Writer places chunks into the entries of a container.
type Writer struct {
	component.Base
	cfg      Config
	store    container.Container
	register *register.Register
	now      func() time.Time
	metrics  *writerMetrics

	table    Table
	entries  map[string]*entryState
	autoNext int
}

// NewWriter opens the container named by cfg and indexes its entries.
func NewWriter(ctx context.Context, name string, cfg Config, deps component.Dependencies) (*Writer, error) {
	opener := deps.Containers
	if opener == nil {
		opener = container.NewOpener()
	}
	reg := deps.Register
	if reg == nil {
		reg = register.New(deps.GetLogger())
	}

	store, err := opener.Open(ctx, cfg.File, container.OpenOptions{
		Backend:      cfg.Backend,
		Create:       cfg.Create,
		SamplingRate: cfg.SamplingRate,
		Logger:       deps.GetLogger(),
		Metrics:      deps.MetricsRegistry,
	})
	if err != nil {
		return nil, errors.Wrap(err, "EntryWriter", "NewWriter", "open container")
	}

	metrics, err := newWriterMetrics(deps.MetricsRegistry, name)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize entry_writer metrics", "error", err)
		metrics = nil
	}

	w := &Writer{
		Base:     component.NewBase(name, deps),
		cfg:      cfg,
		store:    store,
		register: reg,
		now:      deps.Now,
		metrics:  metrics,
		entries:  make(map[string]*entryState),
	}
	if err := w.load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	w.Logger().Info("Opened container", "file", cfg.File, "entries", w.table.Len(),
		"sampling_rate", store.Info().SamplingRate)
	return w, nil
}

// load indexes the entries already in the container. Entries are placed by
// their sample count when the container has a clock, otherwise by
// timestamp relative to the earliest entry.
func (w *Writer) load(ctx context.Context) error {
	list, err := w.store.Entries(ctx)
	if err != nil {
		return errors.Wrap(err, "EntryWriter", "load", "list entries")
	}
	rate := w.store.Info().SamplingRate
	var earliest *big.Rat
	for _, e := range list {
		if t := chunk.FromTime(e.Timestamp); earliest == nil || t.Cmp(earliest) < 0 {
			earliest = t
		}
	}
	for _, e := range list {
		var offset *big.Rat
		if e.SampleCount != nil && rate > 0 {
			offset = big.NewRat(*e.SampleCount, rate)
		} else {
			offset = chunk.FromTime(e.Timestamp)
			offset.Sub(offset, earliest)
		}
		w.table.Insert(offset, e.Name)
		w.entries[e.Name] = &entryState{info: e, offset: offset}
	}
	return nil
}

// Table returns the entry index.
func (w *Writer) Table() *Table {
	return &w.table
}

// Send writes c. Every write for one chunk is applied as a single batch,
// so a failure leaves the container unchanged.
func (w *Writer) Send(ctx context.Context, c *chunk.Chunk) error {
	w.Received(c)
	if w.Closed() {
		return w.Fail(errors.WrapFatal(errors.ErrClosed, "EntryWriter", "Send", "write chunk"))
	}

	p := w.begin()
	var err error
	switch c.Kind {
	case chunk.Structure:
		err = p.structure(c)
	case chunk.Sampled:
		err = p.samples(ctx, c)
	case chunk.Events:
		if len(c.Events) == 0 {
			return nil
		}
		err = p.events(ctx, c)
	default:
		return nil
	}
	if err != nil {
		return w.Fail(err)
	}
	if len(p.ops) == 0 {
		return nil
	}
	if err := w.store.Apply(ctx, p.ops); err != nil {
		return w.Fail(errors.Wrap(err, "EntryWriter", "Send", "apply batch"))
	}
	w.commit(p)
	w.metrics.recordWrite(c.Kind.String())
	return nil
}

// Close closes the container once.
func (w *Writer) Close(ctx context.Context) error {
	if w.Closed() {
		return nil
	}
	w.Logger().Info("Closing container", "file", w.cfg.File, "entries", w.table.Len())
	var errs []error
	if err := w.store.Close(); err != nil {
		errs = append(errs, errors.Wrap(err, "EntryWriter", "Close", "close container"))
	}
	if err := w.Base.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

// Throw records that the run failed. Committed batches stay in place.
func (w *Writer) Throw(ctx context.Context, err error) {
	w.Logger().Warn("Run aborted, container left at last committed chunk", "error", err)
	w.Base.Throw(ctx, err)
}
