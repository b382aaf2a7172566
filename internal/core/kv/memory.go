package kv

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]string

	// FailPings makes Ping fail; FailOps makes every data call fail.
	// Test hooks, zero value is a healthy store.
	FailPings bool
	FailOps   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]string)}
}

func (m *MemoryStore) GetAll(_ context.Context, collection string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailOps != nil {
		return nil, m.FailOps
	}
	coll := m.collections[collection]
	out := make(map[string]string, len(coll))
	for k, v := range coll {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, collection, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailOps != nil {
		return "", false, m.FailOps
	}
	doc, ok := m.collections[collection][key]
	return doc, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, collection, key, doc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOps != nil {
		return m.FailOps
	}
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]string)
	}
	m.collections[collection][key] = doc
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOps != nil {
		return false, m.FailOps
	}
	coll, ok := m.collections[collection]
	if !ok {
		return false, nil
	}
	if _, exists := coll[key]; !exists {
		return false, nil
	}
	delete(coll, key)
	return true, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailPings {
		return context.DeadlineExceeded
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
