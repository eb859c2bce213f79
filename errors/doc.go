// Package errors provides standardized error handling for mspikes components.
//
// # Error Classification
//
// Errors fall into three classes:
//
//   - Transient: temporary conditions such as a lost broker connection
//   - Invalid: bad input data or configuration (boundary violations, rate mismatches)
//   - Fatal: unrecoverable states that must stop the run (container conflicts,
//     graph definition errors)
//
// Classification works through errors.Is and errors.As, so sentinel errors
// keep their meaning when wrapped.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	component.method: action failed: underlying error
//
// For example:
//
//	if err := store.Apply(ctx, ops); err != nil {
//	    return errors.WrapFatal(err, "EntryWriter", "Send", "apply write batch")
//	}
//
// # Pipeline Errors
//
// The pipeline surfaces its failure modes through sentinels:
//
//	ErrConflict      entry or dataset identity mismatch, overlapping write
//	ErrCapacity      dataset cannot grow when growth is required
//	ErrRateMismatch  sampling rate changed where consistency is required
//	ErrBoundary      chunk offset precedes every known entry
//	ErrAlignment     no waveforms left after discarding unalignable peaks
//	ErrDefinition    graph definition could not be parsed or built
//	ErrUnknownType   node type name not present in the registry
//
// The run driver attaches the offending chunk with AtChunk, producing a
// *ChunkError that carries the chunk id and offset for diagnostics.
package errors
