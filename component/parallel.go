package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360/mspikes/chunk"
	mserrors "github.com/c360/mspikes/errors"
)

// KeyFunc selects the worker that handles a chunk.
type KeyFunc func(c *chunk.Chunk) string

// ByID keys chunks by channel id.
func ByID(c *chunk.Chunk) string {
	return c.ID
}

// WorkerFactory builds the worker for one key.
type WorkerFactory func(key string) (Node, error)

// ParallelOption configures a Parallel wrapper.
type ParallelOption func(*Parallel)

// WithKey sets the dispatch key. The default is ByID.
func WithKey(fn KeyFunc) ParallelOption {
	return func(p *Parallel) { p.key = fn }
}

// WithDispatchTags restricts dispatch to chunks carrying one of tags. Other
// chunks are forwarded to the shared targets unchanged.
func WithDispatchTags(tags ...string) ParallelOption {
	return func(p *Parallel) { p.tags = tags }
}

// WithLogger sets the wrapper logger.
func WithLogger(logger *slog.Logger) ParallelOption {
	return func(p *Parallel) { p.logger = logger }
}

// Parallel runs an independent worker per dispatch key. Workers are created
// on first use and all emit into the wrapper's targets.
type Parallel struct {
	name      string
	newWorker WorkerFactory
	key       KeyFunc
	tags      []string
	logger    *slog.Logger

	targets *Targets
	workers map[string]Node
	order   []string

	closed bool
	thrown bool
}

// NewParallel creates a wrapper named name.
func NewParallel(name string, newWorker WorkerFactory, opts ...ParallelOption) *Parallel {
	p := &Parallel{
		name:      name,
		newWorker: newWorker,
		key:       ByID,
		logger:    slog.Default(),
		targets:   NewTargets(),
		workers:   make(map[string]Node),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", name)
	return p
}

// AddTarget connects target downstream of every worker.
func (p *Parallel) AddTarget(target Node, filters ...Filter) {
	p.targets.Add(target, filters...)
}

// Workers returns the workers in creation order.
func (p *Parallel) Workers() []Node {
	out := make([]Node, len(p.order))
	for i, k := range p.order {
		out[i] = p.workers[k]
	}
	return out
}

// Worker returns the worker for key, creating it if needed.
func (p *Parallel) Worker(key string) (Node, error) {
	if w, ok := p.workers[key]; ok {
		return w, nil
	}
	w, err := p.newWorker(key)
	if err != nil {
		return nil, mserrors.Wrap(err, "Parallel", "Worker", fmt.Sprintf("create worker for %q", key))
	}
	tu, ok := w.(TargetUser)
	if !ok {
		return nil, mserrors.WrapFatal(fmt.Errorf("worker %T cannot share targets", w),
			"Parallel", "Worker", "attach worker")
	}
	tu.UseTargets(p.targets.View())
	p.workers[key] = w
	p.order = append(p.order, key)
	p.logger.Debug("Created worker", "key", key, "workers", len(p.order))
	return w, nil
}

// Send routes c to the worker for its key.
func (p *Parallel) Send(ctx context.Context, c *chunk.Chunk) error {
	if len(p.tags) > 0 && !c.Tags.Any(p.tags...) {
		return p.targets.Send(ctx, c)
	}
	w, err := p.Worker(p.key(c))
	if err != nil {
		return err
	}
	return w.Send(ctx, c)
}

// Close closes the workers in creation order and then the shared targets.
func (p *Parallel) Close(ctx context.Context) error {
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for _, k := range p.order {
		if err := p.workers[k].Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.targets.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Throw notifies every worker and the shared targets.
func (p *Parallel) Throw(ctx context.Context, err error) {
	if p.thrown {
		return
	}
	p.thrown = true
	for _, k := range p.order {
		p.workers[k].Throw(ctx, err)
	}
	p.targets.Throw(ctx, err)
}
