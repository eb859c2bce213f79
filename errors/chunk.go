package errors

import (
	"errors"
	"fmt"
)

// ChunkError attaches the identity of the chunk being processed to an error
// so a failed run can be traced back to the offending data.
type ChunkError struct {
	ID     string
	Offset string
	Err    error
}

// Error implements the error interface
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %s@%s: %v", e.ID, e.Offset, e.Err)
}

// Unwrap returns the underlying error
func (e *ChunkError) Unwrap() error {
	return e.Err
}

// AtChunk wraps err with chunk diagnostics. Errors that already carry a
// ChunkError are returned unchanged so the innermost chunk is reported.
func AtChunk(err error, id string, offset fmt.Stringer) error {
	if err == nil {
		return nil
	}
	var ce *ChunkError
	if errors.As(err, &ce) {
		return err
	}
	off := ""
	if offset != nil {
		off = offset.String()
	}
	return &ChunkError{ID: id, Offset: off, Err: err}
}
