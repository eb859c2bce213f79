package container

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"sync"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
)

type memDataset struct {
	info    DatasetInfo
	samples []float64
	events  []chunk.Event
}

type memEntry struct {
	info     EntryInfo
	datasets []*memDataset
}

func (e *memEntry) dataset(name string) (int, *memDataset) {
	for i, d := range e.datasets {
		if d.info.Name == name {
			return i, d
		}
	}
	return -1, nil
}

// memState is copied on every batch; datasets are copied when first touched.
type memState struct {
	entries []*memEntry
}

func (s *memState) entry(name string) *memEntry {
	for _, e := range s.entries {
		if e.info.Name == name {
			return e
		}
	}
	return nil
}

func (s *memState) clone() *memState {
	out := &memState{entries: make([]*memEntry, len(s.entries))}
	for i, e := range s.entries {
		ce := *e
		ce.datasets = slices.Clone(e.datasets)
		out.entries[i] = &ce
	}
	return out
}

// Memory is an in-process container.
type Memory struct {
	mu    sync.RWMutex
	info  Info
	state *memState
}

// NewMemory creates an empty in-process container with the given clock rate.
func NewMemory(name string, samplingRate int64) *Memory {
	return &Memory{
		info:  Info{Backend: BackendMemory, Path: name, SamplingRate: samplingRate},
		state: &memState{},
	}
}

// Info returns the container description
func (m *Memory) Info() Info {
	return m.info
}

// Entries returns all entries in creation order
func (m *Memory) Entries(ctx context.Context) ([]EntryInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EntryInfo, len(m.state.entries))
	for i, e := range m.state.entries {
		out[i] = copyEntry(e.info)
	}
	return out, nil
}

// Datasets returns the datasets of entry in creation order
func (m *Memory) Datasets(ctx context.Context, entry string) ([]DatasetInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.state.entry(entry)
	if e == nil {
		return nil, entryNotFound("Datasets", entry)
	}
	out := make([]DatasetInfo, len(e.datasets))
	for i, d := range e.datasets {
		out[i] = copyDataset(d.info)
	}
	return out, nil
}

// ReadSamples returns samples [start, stop) of a sampled dataset
func (m *Memory) ReadSamples(ctx context.Context, entry, dataset string, start, stop int64) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, err := m.lookup("ReadSamples", entry, dataset)
	if err != nil {
		return nil, err
	}
	n := int64(len(d.samples))
	if stop < 0 || stop > n {
		stop = n
	}
	if start < 0 || start > stop {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: range [%d, %d) of %d samples", errors.ErrInvalidData, start, stop, n),
			"Memory", "ReadSamples", "check range")
	}
	return slices.Clone(d.samples[start:stop]), nil
}

// ReadEvents returns every event of an events dataset
func (m *Memory) ReadEvents(ctx context.Context, entry, dataset string) ([]chunk.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, err := m.lookup("ReadEvents", entry, dataset)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.events), nil
}

func (m *Memory) lookup(method, entry, dataset string) (*memDataset, error) {
	e := m.state.entry(entry)
	if e == nil {
		return nil, entryNotFound(method, entry)
	}
	_, d := e.dataset(dataset)
	if d == nil {
		return nil, datasetNotFound(method, entry, dataset)
	}
	return d, nil
}

// Apply validates and applies ops against a copy of the current state and
// installs the copy only if every op succeeds.
func (m *Memory) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "Memory", "Apply", "apply batch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	touched := make(map[*memDataset]*memDataset)
	for i, op := range ops {
		if err := next.apply(op, touched); err != nil {
			return errors.Wrap(err, "Memory", "Apply", fmt.Sprintf("op %d (%T)", i, op))
		}
	}
	m.state = next
	return nil
}

// Close is a no-op; the data lives as long as the Memory value.
func (m *Memory) Close() error {
	return nil
}

// writable returns a private copy of the dataset at index i of e.
func writable(e *memEntry, i int, touched map[*memDataset]*memDataset) *memDataset {
	d := e.datasets[i]
	if cp, ok := touched[d]; ok {
		return cp
	}
	// appends may reuse spare capacity; the committed state never reads
	// past its own length
	cp := &memDataset{info: d.info, samples: d.samples, events: d.events}
	touched[d] = cp
	touched[cp] = cp
	e.datasets[i] = cp
	return cp
}

func (s *memState) apply(op Op, touched map[*memDataset]*memDataset) error {
	switch op := op.(type) {
	case CreateEntry:
		if err := ValidateEntry(op.Entry); err != nil {
			return err
		}
		if s.entry(op.Entry.Name) != nil {
			return conflict("entry %q already exists", op.Entry.Name)
		}
		s.entries = append(s.entries, &memEntry{info: copyEntry(op.Entry)})

	case CreateDataset:
		e := s.entry(op.Entry)
		if e == nil {
			return entryNotFound("Apply", op.Entry)
		}
		if err := ValidateDataset(op.Dataset); err != nil {
			return err
		}
		if _, d := e.dataset(op.Dataset.Name); d != nil {
			return conflict("dataset %q already exists in entry %q", op.Dataset.Name, op.Entry)
		}
		info := copyDataset(op.Dataset)
		info.Length = 0
		e.datasets = append(e.datasets, &memDataset{info: info})

	case AppendSamples:
		e, i, err := s.target(op.Entry, op.Dataset, chunk.Sampled)
		if err != nil {
			return err
		}
		d := writable(e, i, touched)
		if err := checkCapacity(d.info); err != nil {
			return err
		}
		d.samples = append(d.samples, op.Samples...)
		d.info.Length = int64(len(d.samples))

	case AppendEvents:
		e, i, err := s.target(op.Entry, op.Dataset, chunk.Events)
		if err != nil {
			return err
		}
		d := writable(e, i, touched)
		if err := checkCapacity(d.info); err != nil {
			return err
		}
		d.events = append(d.events, op.Events...)
		d.info.Length = int64(len(d.events))

	case DeleteDataset:
		e := s.entry(op.Entry)
		if e == nil {
			return entryNotFound("Apply", op.Entry)
		}
		i, d := e.dataset(op.Dataset)
		if d == nil {
			return datasetNotFound("Apply", op.Entry, op.Dataset)
		}
		e.datasets = slices.Delete(e.datasets, i, i+1)

	default:
		return errors.WrapInvalid(fmt.Errorf("unsupported op %T", op), "Memory", "Apply", "dispatch op")
	}
	return nil
}

func (s *memState) target(entry, dataset string, kind chunk.Kind) (*memEntry, int, error) {
	e := s.entry(entry)
	if e == nil {
		return nil, 0, entryNotFound("Apply", entry)
	}
	i, d := e.dataset(dataset)
	if d == nil {
		return nil, 0, datasetNotFound("Apply", entry, dataset)
	}
	if d.info.Kind != kind {
		return nil, 0, conflict("dataset %q in entry %q holds %s data, not %s", dataset, entry, d.info.Kind, kind)
	}
	return e, i, nil
}

func copyEntry(e EntryInfo) EntryInfo {
	if e.SampleCount != nil {
		n := *e.SampleCount
		e.SampleCount = &n
	}
	e.Attrs = maps.Clone(e.Attrs)
	return e
}

func copyDataset(d DatasetInfo) DatasetInfo {
	if d.Offset == nil {
		d.Offset = new(big.Rat)
	} else {
		d.Offset = new(big.Rat).Set(d.Offset)
	}
	return d
}
