package workflow

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"seoforge/internal/services"
)

// Store persists workflow snapshots by id.
type Store interface {
	Get(ctx context.Context, id string) (State, error)
	Put(ctx context.Context, state State) error
	Delete(ctx context.Context, id string) error
	// List returns up to limit states, most recently started first. A
	// non-positive limit returns everything.
	List(ctx context.Context, limit int) ([]State, error)
}

// NotFound is the error stores return for an unknown id.
func NotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "workflow", "", "no workflow with id "+strconv.Quote(id), nil)
}

// MemoryStore keeps states for the process lifetime.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]State{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[id]
	if !ok {
		return State{}, NotFound(id)
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, state State) error {
	if state.ID == "" {
		return services.Validation("workflow", "state id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.ID] = state.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]State, error) {
	m.mu.RLock()
	out := make([]State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st.Clone())
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b State) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
