package store

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process. Used by tests and single-node runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.set(key, value)
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delete(keys...)
	return nil
}

func (m *MemoryStore) ListAppend(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listAppend(key, value)
	return nil
}

func (m *MemoryStore) ListRemove(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listRemove(key, value)
	return nil
}

func (m *MemoryStore) ListRead(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.lists[key]...), nil
}

// Atomic collects the queued operations and applies them under a single lock.
func (m *MemoryStore) Atomic(_ context.Context, fn func(w Writer) error) error {
	batch := &memoryBatch{}
	if err := fn(batch); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range batch.ops {
		op(m)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) set(key string, value []byte) {
	m.values[key] = append([]byte(nil), value...)
}

func (m *MemoryStore) delete(keys ...string) {
	for _, k := range keys {
		delete(m.values, k)
		delete(m.lists, k)
	}
}

func (m *MemoryStore) listAppend(key, value string) {
	m.lists[key] = append(m.lists[key], value)
}

// listRemove drops every occurrence of value, like LREM key 0 value.
func (m *MemoryStore) listRemove(key, value string) {
	list := m.lists[key]
	kept := list[:0]
	for _, v := range list {
		if v != value {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		delete(m.lists, key)
		return
	}
	m.lists[key] = kept
}

type memoryBatch struct {
	ops []func(m *MemoryStore)
}

func (b *memoryBatch) Set(key string, value []byte) {
	v := append([]byte(nil), value...)
	b.ops = append(b.ops, func(m *MemoryStore) { m.set(key, v) })
}

func (b *memoryBatch) Delete(keys ...string) {
	b.ops = append(b.ops, func(m *MemoryStore) { m.delete(keys...) })
}

func (b *memoryBatch) ListAppend(key, value string) {
	b.ops = append(b.ops, func(m *MemoryStore) { m.listAppend(key, value) })
}

func (b *memoryBatch) ListRemove(key, value string) {
	b.ops = append(b.ops, func(m *MemoryStore) { m.listRemove(key, value) })
}
