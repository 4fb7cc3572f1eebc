package research

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"seoforge/internal/logging"
	"seoforge/internal/services"
	"seoforge/internal/services/scrape"
	"seoforge/internal/services/search"
	"seoforge/internal/textutil"
)

// DuplicateThreshold is the content similarity above which a scraped page is
// treated as a copy of an earlier one and dropped.
const DuplicateThreshold = 0.92

// ErrPending is returned by Get while a started run has not finished.
var ErrPending = errors.New("research still running")

// Searcher runs SERP queries.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Response, error)
}

// Scraper fetches page content.
type Scraper interface {
	ScrapeURLs(ctx context.Context, urls []string, opts scrape.Options) scrape.Batch
	Search(ctx context.Context, query string, opts scrape.SearchOptions) ([]scrape.Page, error)
}

// RunState tracks a run started with Start.
type RunState struct {
	ID         string    `json:"id"`
	Keyword    string    `json:"keyword"`
	Running    bool      `json:"running"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Orchestrator composes search and scrape into one research run.
type Orchestrator struct {
	searcher Searcher
	scraper  Scraper
	repo     Repository
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	runs     map[string]*RunState
	failures map[string]error
	wg       sync.WaitGroup
}

// NewOrchestrator wires the clients and repository. A nil repository keeps
// results in memory.
func NewOrchestrator(searcher Searcher, scraper Scraper, repo Repository, logger *slog.Logger) *Orchestrator {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	return &Orchestrator{
		searcher: searcher,
		scraper:  scraper,
		repo:     repo,
		logger:   logging.NewComponentLogger(logger, "research"),
		now:      time.Now,
		runs:     map[string]*RunState{},
		failures: map[string]error{},
	}
}

// Repository exposes the backing store.
func (o *Orchestrator) Repository() Repository { return o.repo }

// Conduct runs search then batch scrape and persists the result. A search
// failure fails the run; scrape failures only shrink ScrapedContent.
func (o *Orchestrator) Conduct(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	return o.conduct(ctx, uuid.NewString(), req)
}

// Start validates req, runs Conduct in the background, and returns the id the
// result will be stored under. The run is not tied to ctx's cancellation.
func (o *Orchestrator) Start(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	id := uuid.NewString()
	state := &RunState{ID: id, Keyword: strings.TrimSpace(req.Keyword), Running: true, StartedAt: o.now().UTC()}
	o.mu.Lock()
	o.runs[id] = state
	o.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, err := o.conduct(bg, id, req)
		o.mu.Lock()
		defer o.mu.Unlock()
		state.Running = false
		state.FinishedAt = o.now().UTC()
		if err != nil {
			state.Error = services.Details(err).Message
			o.failures[id] = err
		}
	}()
	return id, nil
}

// Get returns a stored result. For ids from Start it returns ErrPending while
// the run is in progress and the recorded failure once it has failed.
func (o *Orchestrator) Get(ctx context.Context, id string) (Result, error) {
	o.mu.Lock()
	state, tracked := o.runs[id]
	running := tracked && state.Running
	failure := o.failures[id]
	o.mu.Unlock()
	if running {
		return Result{}, ErrPending
	}
	if failure != nil {
		return Result{}, failure
	}
	return o.repo.Get(ctx, id)
}

// Run returns the tracked state of a run started with Start.
func (o *Orchestrator) Run(id string) (RunState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.runs[id]
	if !ok {
		return RunState{}, false
	}
	return *state, true
}

// Wait blocks until all runs started so far have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) conduct(ctx context.Context, id string, req Request) (Result, error) {
	keyword := strings.TrimSpace(req.Keyword)
	ctx, span := otel.Tracer("seoforge/research").Start(ctx, "research.conduct")
	defer span.End()
	span.SetAttributes(
		attribute.String("research.id", id),
		attribute.String("research.keyword", keyword),
		attribute.Bool("research.fused", req.Fused),
	)
	logger := logging.WithContext(ctx, o.logger).With(logging.String("research_id", id), logging.String("keyword", keyword))
	start := o.now()

	serp, err := o.searcher.Search(ctx, search.Request{Keyword: keyword, Geo: req.Geo, NumResults: req.NumResults})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		logging.ErrorWithContext(logger, "research search failed", "research_search_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check search api key and quota"))
		return Result{}, err
	}

	var (
		pages  []scrape.Page
		failed []string
	)
	if req.Fused {
		pages, err = o.scraper.Search(ctx, keyword, scrape.SearchOptions{Limit: len(serp.Results), Geo: serp.Geo})
		if err != nil {
			logging.WarnWithContext(logger, "fused search failed, falling back to serp links", "research_fused_fallback",
				logging.Error(err),
				logging.String(logging.FieldImpact, "pages are scraped individually"))
			req.Fused = false
		}
	}
	if !req.Fused {
		batch := o.scraper.ScrapeURLs(ctx, serp.Links(), scrape.Options{})
		pages = batch.Pages
		for _, f := range batch.Failures {
			failed = append(failed, f.URL)
		}
	}
	kept, dropped := dedupePages(pages)

	result := Result{
		ID:              id,
		Keyword:         keyword,
		Geo:             serp.Geo,
		SERPResults:     serp.Results,
		ScrapedContent:  kept,
		PeopleAlsoAsk:   serp.PeopleAlsoAsk,
		RelatedSearches: serp.RelatedSearches,
		FailedURLs:      failed,
		CreatedAt:       o.now().UTC(),
	}
	if err := o.repo.Put(ctx, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("research.serp_results", len(result.SERPResults)),
		attribute.Int("research.pages", len(result.ScrapedContent)),
	)
	logger.Info("research completed",
		logging.Int("serp_results", len(result.SERPResults)),
		logging.Int("pages", len(result.ScrapedContent)),
		logging.Int("failed_pages", len(failed)),
		logging.Int("duplicates_dropped", dropped),
		logging.Int("total_words", result.TotalWords()),
		logging.Duration("duration", o.now().Sub(start)),
	)
	return result, nil
}

// dedupePages drops empty pages and pages whose content nearly matches an
// earlier page. Syndicated copies add nothing to an outline.
func dedupePages(pages []scrape.Page) ([]scrape.Page, int) {
	kept := make([]scrape.Page, 0, len(pages))
	dropped := 0
	for _, page := range pages {
		if page.WordCount == 0 {
			dropped++
			continue
		}
		duplicate := false
		for _, prior := range kept {
			if textutil.Similarity(prior.Content, page.Content) >= DuplicateThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped++
			continue
		}
		kept = append(kept, page)
	}
	return kept, dropped
}

func validate(req Request) error {
	if strings.TrimSpace(req.Keyword) == "" {
		return services.Validation("research", "keyword is required")
	}
	if req.NumResults < 0 {
		return services.Validation("research", "num_results must not be negative")
	}
	return nil
}
