package history

import (
	"context"
	"sync"
)

// Memory keeps the log in process memory; it does not survive restarts.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, entries ...Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, entries...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Recent(_ context.Context, k int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.entries, k), nil
}

func (m *Memory) All(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.entries, len(m.entries)), nil
}

func (m *Memory) Close() error { return nil }
