// Package storage provides the durable keyed slots used to persist client
// state such as query filters between runs.
package storage

import "sync"

// KeyValue stores one JSON-like mapping per key.
type KeyValue interface {
	Get(key string) (map[string]any, bool)
	Set(key string, value map[string]any) error
}

// Memory is a process-local KeyValue.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]any)}
}

func (m *Memory) Get(key string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false
	}
	return copyMap(v), true
}

func (m *Memory) Set(key string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = copyMap(value)
	return nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
