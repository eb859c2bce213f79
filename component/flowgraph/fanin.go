package flowgraph

import (
	"context"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
)

// fanIn holds back Close of a node with several incoming edges until every
// edge has closed, so that each upstream branch can flush into it first.
type fanIn struct {
	node component.Node
	open int
}

// inlet is one incoming edge of a fanIn. Send and Throw pass straight
// through; Close counts once per edge.
type inlet struct {
	in     *fanIn
	closed bool
}

// inlets returns one inlet per incoming edge of node.
func inlets(node component.Node, edges int) []component.Node {
	if edges == 1 {
		return []component.Node{node}
	}
	in := &fanIn{node: node, open: edges}
	out := make([]component.Node, edges)
	for i := range out {
		out[i] = &inlet{in: in}
	}
	return out
}

func (e *inlet) Send(ctx context.Context, c *chunk.Chunk) error {
	return e.in.node.Send(ctx, c)
}

func (e *inlet) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.in.open--
	if e.in.open > 0 {
		return nil
	}
	return e.in.node.Close(ctx)
}

func (e *inlet) Throw(ctx context.Context, err error) {
	e.in.node.Throw(ctx, err)
}
