// Package container defines the hierarchical recording store that pipeline
// sinks write to and sources read from.
//
// A container holds named entries, each marking the start of a logical
// recording. Entries hold datasets: uniformly sampled arrays or event
// tables, positioned by an exact offset in seconds from the start of the
// entry. Writes are expressed as batches of operations applied atomically:
// either every operation in the batch takes effect or none does.
package container

import (
	"context"
	"math/big"
	"time"

	"github.com/c360/mspikes/chunk"
)

// Info describes a container as a whole.
type Info struct {
	Backend string
	Path    string
	// SamplingRate is the container clock in Hz; zero when entries are
	// positioned by timestamp only.
	SamplingRate int64
}

// EntryInfo describes one entry.
type EntryInfo struct {
	Name        string
	Timestamp   time.Time
	UUID        string
	SampleCount *int64 // position on the container clock, when known
	Attrs       map[string]string
}

// DatasetInfo describes one dataset within an entry.
type DatasetInfo struct {
	Name         string
	Kind         chunk.Kind // chunk.Sampled or chunk.Events
	SamplingRate int64      // zero for event times in seconds
	Offset       *big.Rat   // seconds relative to the entry
	Units        string
	UUID         string
	Growable     bool
	Length       int64 // samples or events stored
}

// Container is a hierarchical store of entries and datasets. Implementations
// are safe for concurrent use.
type Container interface {
	Info() Info
	// Entries returns all entries in creation order.
	Entries(ctx context.Context) ([]EntryInfo, error)
	// Datasets returns the datasets of entry in creation order.
	Datasets(ctx context.Context, entry string) ([]DatasetInfo, error)
	// ReadSamples returns samples [start, stop) of a sampled dataset. A
	// negative stop reads to the end.
	ReadSamples(ctx context.Context, entry, dataset string, start, stop int64) ([]float64, error)
	// ReadEvents returns every event of an events dataset.
	ReadEvents(ctx context.Context, entry, dataset string) ([]chunk.Event, error)
	// Apply performs ops in order as a single atomic batch.
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// Op is one write in a batch.
type Op interface {
	isOp()
}

// CreateEntry adds a new entry.
type CreateEntry struct {
	Entry EntryInfo
}

// CreateDataset adds an empty dataset to an existing entry.
type CreateDataset struct {
	Entry   string
	Dataset DatasetInfo
}

// AppendSamples extends a sampled dataset.
type AppendSamples struct {
	Entry   string
	Dataset string
	Samples []float64
}

// AppendEvents extends an events dataset.
type AppendEvents struct {
	Entry   string
	Dataset string
	Events  []chunk.Event
}

// DeleteDataset removes a dataset.
type DeleteDataset struct {
	Entry   string
	Dataset string
}

func (CreateEntry) isOp()   {}
func (CreateDataset) isOp() {}
func (AppendSamples) isOp() {}
func (AppendEvents) isOp()  {}
func (DeleteDataset) isOp() {}
