package component

import (
	"context"

	"github.com/c360/mspikes/chunk"
)

// Node is a processing stage. Send delivers one chunk and returns once every
// downstream node reachable from it has finished with the chunk.
//
// Close flushes terminal state; Throw notifies the node that the run is
// aborting and is always followed by Close. Both may be called more than
// once when a node has several upstream sources.
type Node interface {
	Send(ctx context.Context, c *chunk.Chunk) error
	Close(ctx context.Context) error
	Throw(ctx context.Context, err error)
}

// Emitter is a stage with downstream targets.
type Emitter interface {
	AddTarget(target Node, filters ...Filter)
}

// Source produces chunks by pulling from an external collaborator. Next
// pulls one record, delivers it to every target and returns it. It returns
// io.EOF once the source is exhausted.
type Source interface {
	Emitter
	Next(ctx context.Context) (*chunk.Chunk, error)
	Close(ctx context.Context) error
	Throw(ctx context.Context, err error)
}

// Component is anything a factory can build: a Node, a Source, or both.
type Component interface {
	Close(ctx context.Context) error
	Throw(ctx context.Context, err error)
}

// TargetUser is implemented by stages that can adopt a shared target list.
// The parallel wrapper uses it to give every worker the wrapper's targets.
type TargetUser interface {
	UseTargets(t *Targets)
}
