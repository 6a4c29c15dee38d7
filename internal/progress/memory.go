package progress

import (
	"context"
	"sync"
)

// Memory is a process-local Tracker.
type Memory struct {
	mu  sync.Mutex
	rec Record
}

func NewMemory() *Memory {
	return &Memory{rec: NewRecord()}
}

func (m *Memory) Load(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return FromWire(m.rec.ToWire()), nil
}

func (m *Memory) MarkViewed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.MarkViewed(id)
	return nil
}

func (m *Memory) MarkUpdated(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.MarkUpdated(id)
	return nil
}

func (m *Memory) Close() error { return nil }
