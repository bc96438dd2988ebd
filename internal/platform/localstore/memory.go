package localstore

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process KV for tests and throwaway sessions. Values are
// stored in encoded form so callers never share memory with the store.
type Memory struct {
	mu      sync.Mutex
	entries map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]json.RawMessage{}}
}

func (m *Memory) Get(key string, v interface{}) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	m.mu.Lock()
	raw, ok := m.entries[key]
	m.mu.Unlock()
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(key string, v interface{}) error {
	if key == "" {
		return ErrEmptyKey
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.entries[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
