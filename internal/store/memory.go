package store

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Used for tests and for
// hosting tables that do not need to survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, code string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[code] = append([]byte(nil), snapshot...)
	return nil
}

func (m *MemoryStore) Load(_ context.Context, code string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	return nil
}
