package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/metric"
)

// Backend names
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// MemoryPrefix selects the shared in-process backend in a container URI.
const MemoryPrefix = "mem:"

// OpenOptions control how a container is opened.
type OpenOptions struct {
	Backend      string // empty selects by URI: mem: prefix for memory, otherwise sqlite
	Create       bool   // create the container if it does not exist
	SamplingRate int64  // clock rate stored in a newly created container
	Logger       *slog.Logger
	Metrics      *metric.MetricsRegistry // optional; backends may export I/O metrics
}

// Opener opens containers by URI.
type Opener interface {
	Open(ctx context.Context, uri string, opts OpenOptions) (Container, error)
}

// BackendFunc opens a container at path for one backend.
type BackendFunc func(ctx context.Context, path string, opts OpenOptions) (Container, error)

// Backends is an Opener dispatching to registered backends. Memory
// containers opened through the same Backends are shared by name, so one
// pipeline node can read what another wrote.
type Backends struct {
	mu       sync.Mutex
	backends map[string]BackendFunc
	memory   map[string]*Memory
}

// NewOpener returns an opener with the memory backend registered.
func NewOpener() *Backends {
	b := &Backends{
		backends: make(map[string]BackendFunc),
		memory:   make(map[string]*Memory),
	}
	b.backends[BackendMemory] = b.openMemory
	return b
}

// Register adds a backend under name, replacing any previous one.
func (b *Backends) Register(name string, fn BackendFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backends[name] = fn
}

// Open opens uri with the backend named in opts or implied by the URI.
func (b *Backends) Open(ctx context.Context, uri string, opts OpenOptions) (Container, error) {
	backend := opts.Backend
	path := uri
	if rest, ok := strings.CutPrefix(uri, MemoryPrefix); ok {
		path = rest
		if backend == "" {
			backend = BackendMemory
		}
	}
	if backend == "" {
		backend = BackendSQLite
	}
	if path == "" {
		return nil, errors.WrapFatal(fmt.Errorf("%w: empty container path", errors.ErrInvalidConfig),
			"Opener", "Open", "resolve container")
	}

	b.mu.Lock()
	fn, ok := b.backends[backend]
	b.mu.Unlock()
	if !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: storage backend %q", errors.ErrUnknownType, backend),
			"Opener", "Open", "resolve backend")
	}
	c, err := fn(ctx, path, opts)
	if err != nil {
		return nil, errors.Wrap(err, "Opener", "Open", fmt.Sprintf("open %s container %q", backend, path))
	}
	return c, nil
}

func (b *Backends) openMemory(_ context.Context, name string, opts OpenOptions) (Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.memory[name]; ok {
		return m, nil
	}
	if !opts.Create {
		return nil, errors.WrapFatal(fmt.Errorf("%w: no memory container %q", errors.ErrStorageUnavailable, name),
			"Opener", "Open", "find memory container")
	}
	m := NewMemory(name, opts.SamplingRate)
	b.memory[name] = m
	return m, nil
}
