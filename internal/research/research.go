package research

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"seoforge/internal/services"
	"seoforge/internal/services/scrape"
	"seoforge/internal/services/search"
)

// Request identifies one research run. Empty Geo and zero NumResults take the
// search client defaults.
type Request struct {
	Keyword    string `json:"keyword"`
	Geo        string `json:"geo,omitempty"`
	NumResults int    `json:"num_results,omitempty"`
	// Fused sources pages from the scrape provider's combined search call
	// instead of the SERP links. The SERP is still fetched.
	Fused bool `json:"fused,omitempty"`
}

// Result is the immutable research artifact for one keyword. ScrapedContent
// may hold fewer pages than SERPResults when scrapes fail.
type Result struct {
	ID              string            `json:"id"`
	Keyword         string            `json:"keyword"`
	Geo             string            `json:"geo"`
	SERPResults     []search.Result   `json:"serp_results"`
	ScrapedContent  []scrape.Page     `json:"scraped_content"`
	PeopleAlsoAsk   []search.Question `json:"people_also_ask,omitempty"`
	RelatedSearches []string          `json:"related_searches,omitempty"`
	FailedURLs      []string          `json:"failed_urls,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// TotalWords sums the word counts of the scraped pages.
func (r Result) TotalWords() int {
	total := 0
	for _, page := range r.ScrapedContent {
		total += page.WordCount
	}
	return total
}

// Repository stores research results by id.
type Repository interface {
	Get(ctx context.Context, id string) (Result, error)
	Put(ctx context.Context, result Result) error
	Delete(ctx context.Context, id string) error
	// List returns up to limit results, newest first. A non-positive limit
	// returns everything.
	List(ctx context.Context, limit int) ([]Result, error)
}

// NotFound is the error repositories return for an unknown id.
func NotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "research", "", "no research with id "+strconv.Quote(id), nil)
}

// MemoryRepository keeps results for the process lifetime.
type MemoryRepository struct {
	mu      sync.RWMutex
	results map[string]Result
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{results: map[string]Result{}}
}

func (m *MemoryRepository) Get(_ context.Context, id string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[id]
	if !ok {
		return Result{}, NotFound(id)
	}
	return result, nil
}

func (m *MemoryRepository) Put(_ context.Context, result Result) error {
	if result.ID == "" {
		return services.Validation("research", "result id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.ID] = result
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, id)
	return nil
}

func (m *MemoryRepository) List(_ context.Context, limit int) ([]Result, error) {
	m.mu.RLock()
	out := make([]Result, 0, len(m.results))
	for _, result := range m.results {
		out = append(out, result)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b Result) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
