package leads

import (
	"context"
	"sync"
)

// KV is the persistence boundary: a durable region addressed by one key that
// holds the entire serialized lead collection.
type KV interface {
	// Get returns the stored value or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put overwrites the value for key.
	Put(ctx context.Context, key string, value []byte) error
	// PutIfAbsent writes value only when key has no value and reports whether it wrote.
	PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error)
}

// MemoryKV keeps values in process memory. Used for development and tests.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) PutIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = append([]byte(nil), value...)
	return true, nil
}
