package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend keeps records in a process-local map.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *MemoryBackend) LoadMany(_ context.Context, keys []string) (map[string]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Record, len(keys))
	for _, key := range keys {
		if rec, ok := m.records[key]; ok {
			out[key] = rec
		}
	}
	return out, nil
}

func (m *MemoryBackend) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Value = append([]byte(nil), rec.Value...)
	m.records[rec.Key] = rec
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Prune(_ context.Context, prefix string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, rec := range m.records {
		if strings.HasPrefix(key, prefix) && rec.InsertedAt.Before(cutoff) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Count(_ context.Context, prefix string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.records {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n, nil
}
