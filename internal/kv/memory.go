package kv

import (
	"context"
	"sync"

	"github.com/reelsync/backend/internal/observe"
)

// MemoryStore keeps values in process memory. It backs per-session storage
// that must not survive the session.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	feed   *observe.Registry[Change]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
		feed:   observe.NewRegistry[Change](),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	m.feed.Publish(Change{Key: key})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.values[key]
	delete(m.values, key)
	m.mu.Unlock()
	if existed {
		m.feed.Publish(Change{Key: key, Deleted: true})
	}
	return nil
}

func (m *MemoryStore) Watch(fn func(Change)) observe.Disposer {
	return m.feed.Subscribe(fn)
}
