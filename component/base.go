package component

import (
	"context"
	"log/slog"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/metric"
)

// Base carries the state every node shares: its name, targets, logger and
// metrics, plus the guards that make Close and Throw idempotent. Nodes embed
// it and override Send.
type Base struct {
	name    string
	targets *Targets
	logger  *slog.Logger
	metrics *metric.Metrics

	closed bool
	thrown bool
}

// NewBase creates a Base for the node called name.
func NewBase(name string, deps Dependencies) Base {
	return Base{
		name:    name,
		targets: NewTargets(),
		logger:  deps.GetLoggerWithComponent(name),
		metrics: deps.CoreMetrics(),
	}
}

// Name returns the node name
func (b *Base) Name() string {
	return b.name
}

// Logger returns the node logger
func (b *Base) Logger() *slog.Logger {
	if b.logger == nil {
		return slog.Default()
	}
	return b.logger
}

// Targets returns the node's downstream targets
func (b *Base) Targets() *Targets {
	if b.targets == nil {
		b.targets = NewTargets()
	}
	return b.targets
}

// AddTarget connects target downstream of this node.
func (b *Base) AddTarget(target Node, filters ...Filter) {
	b.Targets().Add(target, filters...)
}

// UseTargets replaces this node's targets with a shared list.
func (b *Base) UseTargets(t *Targets) {
	b.targets = t
}

// Received records the arrival of c.
func (b *Base) Received(c *chunk.Chunk) {
	b.metrics.RecordReceived(b.name, c.Kind.String())
}

// Emit forwards c to every target.
func (b *Base) Emit(ctx context.Context, c *chunk.Chunk) error {
	b.metrics.RecordEmitted(b.name, c.Kind.String())
	if err := b.Targets().Send(ctx, c); err != nil {
		return err
	}
	return nil
}

// Fail counts err against this node and returns it unchanged.
func (b *Base) Fail(err error) error {
	if err != nil {
		b.metrics.RecordError(b.name, errors.Classify(err).String())
	}
	return err
}

// Send passes c through unchanged.
func (b *Base) Send(ctx context.Context, c *chunk.Chunk) error {
	b.Received(c)
	return b.Emit(ctx, c)
}

// Closed reports whether Close has already run.
func (b *Base) Closed() bool {
	return b.closed
}

// Close closes the targets once.
func (b *Base) Close(ctx context.Context) error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.Targets().Close(ctx)
}

// Throw forwards err to the targets once.
func (b *Base) Throw(ctx context.Context, err error) {
	if b.thrown {
		return
	}
	b.thrown = true
	b.Logger().Debug("Aborting", "error", err)
	b.Targets().Throw(ctx, err)
}
