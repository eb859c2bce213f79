// Package component defines the node contract shared by every stage of an
// mspikes pipeline, and the registry that builds nodes from definitions.
//
// # Nodes
//
// A pipeline is a directed acyclic graph. Sources pull records from an
// external collaborator and push the resulting chunks to their targets;
// every other stage is a Node that receives chunks through Send and forwards
// derived chunks through its own targets. Delivery is synchronous and
// depth-first: Send returns only after every downstream node has handled
// the chunk, so a pipeline run is single-threaded and deterministic.
//
// Each edge carries an optional Filter. The graph language names filters by
// chunk kind (samples, events, structure, scalar) or by tag with a leading
// underscore ("_raw").
//
// Close and Throw may be delivered more than once to a node with several
// upstream sources. Base records both and ignores repeats:
//
//	type Doubler struct {
//		component.Base
//	}
//
//	func (d *Doubler) Send(ctx context.Context, c *chunk.Chunk) error {
//		d.Received(c)
//		out := make([]float64, len(c.Samples))
//		for i, x := range c.Samples {
//			out[i] = 2 * x
//		}
//		return d.Emit(ctx, c.WithSamples(c.Offset, out))
//	}
//
// # Parallel Workers
//
// Parallel wraps a per-key worker factory. Workers are created lazily for
// each dispatch key (the channel id by default) and share the wrapper's
// targets; closing the wrapper closes the workers in creation order before
// the shared targets, so every worker flushes before downstream closes.
//
// # Registration
//
// Node packages export a Register(*Registry) error function;
// componentregistry.RegisterAll wires them into one registry. Factories
// decode their parameters with SafeUnmarshal, which rejects unknown fields
// and runs Validate on the decoded config.
package component
