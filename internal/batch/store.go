package batch

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"seoforge/internal/services"
)

// PageStore reads and updates content-plan pages.
type PageStore interface {
	// ListPages returns a project's pages ordered by Position.
	ListPages(ctx context.Context, projectID string) ([]Page, error)
	GetPage(ctx context.Context, id string) (Page, error)
	UpdatePage(ctx context.Context, page Page) error
}

// ProjectStore reads projects.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (Project, error)
}

// PageNotFound is the error stores return for an unknown page id.
func PageNotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "batch", "", "no page with id "+strconv.Quote(id), nil)
}

// ProjectNotFound is the error stores return for an unknown project id.
func ProjectNotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "batch", "", "no project with id "+strconv.Quote(id), nil)
}

// MemoryStore implements PageStore and ProjectStore in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
	pages    map[string]Page
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: map[string]Project{}, pages: map[string]Page{}}
}

// PutProject inserts or replaces a project.
func (m *MemoryStore) PutProject(_ context.Context, project Project) error {
	if project.ID == "" {
		return services.Validation("batch", "project id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
	return nil
}

// AddPages appends pages to a project, assigning positions after the last
// existing page.
func (m *MemoryStore) AddPages(_ context.Context, projectID string, pages []Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return ProjectNotFound(projectID)
	}
	next := 0
	for _, p := range m.pages {
		if p.ProjectID == projectID && p.Position >= next {
			next = p.Position + 1
		}
	}
	for _, p := range pages {
		if p.ID == "" {
			return services.Validation("batch", "page id is required")
		}
		p.ProjectID = projectID
		p.Position = next
		if p.Status == "" {
			p.Status = StatusPending
		}
		next++
		m.pages[p.ID] = p
	}
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return Project{}, ProjectNotFound(id)
	}
	return p, nil
}

func (m *MemoryStore) ListPages(_ context.Context, projectID string) ([]Page, error) {
	m.mu.RLock()
	out := make([]Page, 0)
	for _, p := range m.pages {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Page) int { return a.Position - b.Position })
	return out, nil
}

func (m *MemoryStore) GetPage(_ context.Context, id string) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	if !ok {
		return Page{}, PageNotFound(id)
	}
	return p, nil
}

func (m *MemoryStore) UpdatePage(_ context.Context, page Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[page.ID]; !ok {
		return PageNotFound(page.ID)
	}
	m.pages[page.ID] = page
	return nil
}
