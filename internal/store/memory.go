package store

import (
	"context"
	"sync"

	"cdfplan/internal/model"
)

// Memory keeps selections in process memory. It is the default backend and
// the fake used in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Put stores raw bytes under key, bypassing encoding.
func (m *Memory) Put(key string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), raw...)
}

func (m *Memory) Load(_ context.Context, key string) (model.Selection, error) {
	m.mu.RLock()
	raw := m.data[key]
	m.mu.RUnlock()
	return decode(key, raw), nil
}

func (m *Memory) Save(_ context.Context, key string, sel model.Selection) error {
	raw, err := encode(sel)
	if err != nil {
		return err
	}
	m.Put(key, raw)
	return nil
}

func (m *Memory) Close() error { return nil }
