// Package safe provides small concurrency-safe generic containers. The
// collection's own registries (binary indices, unique indices, stages,
// transforms) are plain maps guarded by the collection's mutex and do not use it.
package safe

import (
	"sort"
	"sync"
)

// Map is a concurrency & type safe string-keyed map
type Map[T any] struct {
	mu   sync.RWMutex
	data map[string]T
}

// NewMap creates a Map seeded with data. A nil data is equivalent to an empty map.
func NewMap[T any](data map[string]T) *Map[T] {
	if data == nil {
		data = map[string]T{}
	}
	return &Map[T]{
		data: data,
	}
}

// Get returns the value stored at key, or the zero value if absent
func (m *Map[T]) Get(key string) T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key]
}

// Exists reports whether key is present
func (m *Map[T]) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

// Set stores value at key
func (m *Map[T]) Set(key string, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]T{}
	}
	m.data[key] = value
}

// SetFunc replaces the value at key with fn applied to the current value (the zero
// value if key is absent), useful for read-modify-write updates like flipping a dirty flag
func (m *Map[T]) SetFunc(key string, fn func(T) T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]T{}
	}
	m.data[key] = fn(m.data[key])
}

// Del removes key, a no-op if absent
func (m *Map[T]) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Len returns the number of entries
func (m *Map[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Keys returns the map's keys in sorted order, for deterministic iteration
func (m *Map[T]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Range calls fn for every entry until fn returns false or entries are exhausted
func (m *Map[T]) Range(fn func(key string, t T) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key, v := range m.data {
		if !fn(key, v) {
			break
		}
	}
}

// AsMap returns a shallow copy of the underlying map
func (m *Map[T]) AsMap() map[string]T {
	data := map[string]T{}
	m.Range(func(key string, entry T) bool {
		data[key] = entry
		return true
	})
	return data
}
