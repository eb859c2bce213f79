package component

import (
	"context"
	"errors"

	"github.com/c360/mspikes/chunk"
)

type target struct {
	node   Node
	filter Filter
}

// Targets is an ordered list of downstream nodes with their delivery
// filters. A list may be shared by several emitters (parallel workers);
// it is only ever touched by the goroutine driving the graph.
type Targets struct {
	entries []target
	parent  *Targets
}

// NewTargets creates an empty target list
func NewTargets() *Targets {
	return &Targets{}
}

// View returns a list that delivers through t but whose Close and Throw do
// nothing. Parallel workers send through a view so that the wrapper alone
// decides when the shared targets are closed.
func (t *Targets) View() *Targets {
	return &Targets{parent: t}
}

// Add appends a target. Multiple filters are chained and must all pass.
func (t *Targets) Add(node Node, filters ...Filter) {
	if t.parent != nil {
		t.parent.Add(node, filters...)
		return
	}
	t.entries = append(t.entries, target{node: node, filter: Chain(filters...)})
}

// Len returns the number of targets
func (t *Targets) Len() int {
	if t.parent != nil {
		return t.parent.Len()
	}
	return len(t.entries)
}

// Send delivers c to every target whose filter accepts it, in insertion
// order. Delivery stops at the first error.
func (t *Targets) Send(ctx context.Context, c *chunk.Chunk) error {
	if t.parent != nil {
		return t.parent.Send(ctx, c)
	}
	for _, tgt := range t.entries {
		if tgt.filter != nil && !tgt.filter(c) {
			continue
		}
		if err := tgt.node.Send(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every target and joins their errors.
func (t *Targets) Close(ctx context.Context) error {
	if t.parent != nil {
		return nil
	}
	var errs []error
	for _, tgt := range t.entries {
		if err := tgt.node.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Throw forwards err to every target.
func (t *Targets) Throw(ctx context.Context, err error) {
	if t.parent != nil {
		return
	}
	for _, tgt := range t.entries {
		tgt.node.Throw(ctx, err)
	}
}
