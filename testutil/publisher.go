package testutil

import (
	"context"
	"slices"
	"sync"
)

// MockPublisher is an in-memory publisher matching natsclient.Client.Publish.
// Thread-safe for concurrent use from multiple goroutines.
type MockPublisher struct {
	mu       sync.RWMutex
	messages map[string][][]byte
	order    []string
	// Err, when set, is returned from Publish and nothing is recorded.
	Err error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

// Publish records data under subject.
func (p *MockPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.messages[subject] = append(p.messages[subject], slices.Clone(data))
	p.order = append(p.order, subject)
	return nil
}

// Messages returns the payloads published to subject.
func (p *MockPublisher) Messages(subject string) [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.messages[subject])
}

// Subjects returns the subject of every publish, in order.
func (p *MockPublisher) Subjects() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.order)
}

// Count returns the total number of messages published.
func (p *MockPublisher) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}
