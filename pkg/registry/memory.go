package registry

import (
	"context"
	"sync"
)

// Memory is a Registry backed by a map. Its contents live as long as the
// process.
type Memory struct {
	mu      sync.RWMutex
	entries map[EntryID]Resource
	closed  bool
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[EntryID]Resource),
	}
}

// Register stores r under a fresh identifier. Identifiers are random, and
// a collision with an existing entry simply draws again.
func (m *Memory) Register(ctx context.Context, r Resource) (EntryID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	id := NewEntryID()
	for {
		if _, taken := m.entries[id]; !taken {
			break
		}
		id = NewEntryID()
	}

	r.ID = id
	m.entries[id] = r
	return id, nil
}

// Get returns the resource registered under id, or ErrUnknownEntry.
func (m *Memory) Get(ctx context.Context, id EntryID) (Resource, error) {
	if err := ctx.Err(); err != nil {
		return Resource{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Resource{}, ErrClosed
	}

	r, ok := m.entries[id]
	if !ok {
		return Resource{}, ErrUnknownEntry
	}
	return r, nil
}

// Count returns the number of registered entries.
func (m *Memory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close makes every later Register and Get fail with ErrClosed. Count
// keeps working.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
