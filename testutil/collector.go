// Package testutil provides helpers for testing pipeline nodes: a collecting
// sink, an in-memory publisher and signal fixtures.
package testutil

import (
	"context"
	"sync"

	"github.com/c360/mspikes/chunk"
)

// Collector is a terminal node that records what it receives.
// Safe for concurrent use, so it can sit behind a parallel wrapper.
type Collector struct {
	mu      sync.Mutex
	chunks  []*chunk.Chunk
	closes  int
	thrown  error
	SendErr error // returned from every Send when set
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Send records c.
func (c *Collector) Send(_ context.Context, ch *chunk.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.chunks = append(c.chunks, ch)
	return nil
}

// Close counts the call.
func (c *Collector) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Throw records err.
func (c *Collector) Throw(_ context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thrown = err
}

// Chunks returns everything received so far, in order.
func (c *Collector) Chunks() []*chunk.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*chunk.Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// OfKind returns the received chunks of one kind.
func (c *Collector) OfKind(kind chunk.Kind) []*chunk.Chunk {
	var out []*chunk.Chunk
	for _, ch := range c.Chunks() {
		if ch.Kind == kind {
			out = append(out, ch)
		}
	}
	return out
}

// Samples concatenates the samples of every sampled chunk with the given id.
func (c *Collector) Samples(id string) []float64 {
	var out []float64
	for _, ch := range c.OfKind(chunk.Sampled) {
		if ch.ID == id {
			out = append(out, ch.Samples...)
		}
	}
	return out
}

// Closes returns how many times Close was called.
func (c *Collector) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Thrown returns the last error thrown at the collector.
func (c *Collector) Thrown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thrown
}

// Reset forgets everything received.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = nil
	c.closes = 0
	c.thrown = nil
}
