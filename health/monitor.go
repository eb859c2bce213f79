package health

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Monitor tracks the health of the nodes of one pipeline run.
// All methods are safe for concurrent use and on a nil receiver, so the
// graph can report unconditionally.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	now      func() time.Time
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		now:      time.Now,
	}
}

// Update replaces the status recorded for name.
func (m *Monitor) Update(name string, status Status) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	status.Name = name
	if status.Timestamp.IsZero() {
		status.Timestamp = m.now()
	}
	m.statuses[name] = status
}

// Running marks name as healthy and in progress.
func (m *Monitor) Running(name, message string) {
	m.Update(name, Status{State: Healthy, Message: message})
}

// Progress records that name has handled n chunks, keeping its state.
func (m *Monitor) Progress(name string, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[name]
	if !ok {
		s = Status{Name: name, State: Healthy}
	}
	s.Chunks = n
	s.Timestamp = m.now()
	m.statuses[name] = s
}

// Degrade marks name as degraded.
func (m *Monitor) Degrade(name, message string) {
	m.Update(name, Status{State: Degraded, Message: message})
}

// Fail marks name as unhealthy with a sanitized error message.
func (m *Monitor) Fail(name string, err error) {
	msg := "failed"
	if err != nil {
		msg = Sanitize(err.Error())
	}
	m.Update(name, Status{State: Unhealthy, Message: msg})
}

// Get returns the status recorded for name.
func (m *Monitor) Get(name string) (Status, bool) {
	if m == nil {
		return Status{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[name]
	return s, ok
}

// Snapshot returns every recorded status ordered by name.
func (m *Monitor) Snapshot() []Status {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	out := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Status) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// AggregateHealth returns the combined health of every recorded node.
func (m *Monitor) AggregateHealth(name string) Status {
	return Aggregate(name, m.Snapshot())
}

// Clear forgets every status.
func (m *Monitor) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = make(map[string]Status)
}
