package research_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seoforge/internal/cache"
	"seoforge/internal/config"
	"seoforge/internal/limiter"
	"seoforge/internal/research"
	"seoforge/internal/retry"
	"seoforge/internal/services"
	"seoforge/internal/services/scrape"
	"seoforge/internal/services/search"
)

var pageTopics = []string{
	"cushioning foam midsole stack height comfort",
	"trail grip lugs outsole rubber mud traction",
	"unused",
	"stability pronation support medial post arch",
	"racing carbon plate tempo speed marathon",
}

func newResearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			var organic []string
			for i := range 5 {
				organic = append(organic, fmt.Sprintf(`{"title":"Result %d","link":"%s/p%d","snippet":"s","position":%d}`, i+1, srv.URL, i+1, i+1))
			}
			fmt.Fprintf(w, `{"organic":[%s],"peopleAlsoAsk":[{"question":"Are expensive shoes worth it?"}]}`, strings.Join(organic, ","))
			return
		}
		if r.URL.Path == "/p3" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var idx int
		if _, err := fmt.Sscanf(r.URL.Path, "/p%d", &idx); err != nil || idx < 1 || idx > len(pageTopics) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>Page %d</title></head><body><article><h2>Guide</h2><p>%s</p></article></body></html>", idx, pageTopics[idx-1])
	}))
	return srv
}

func newOrchestrator(srvURL string, repo research.Repository) *research.Orchestrator {
	policy := retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond,
		Sleep: func(context.Context, time.Duration) error { return nil }}

	searchCfg := config.Default().Search
	searchCfg.BaseURL = srvURL
	searchCfg.APIKey = "serper-key"
	searcher := search.NewClient(search.NewSerper(searchCfg), nil, policy, search.WithDefaults("us", 10))

	pages := cache.New[scrape.Page]("pages", cache.NewMemoryBackend(), time.Hour)
	scraper := scrape.NewClient(scrape.NewDirect(config.Default().Scrape), pages, limiter.New("scrape", 3), policy)
	return research.NewOrchestrator(searcher, scraper, repo, nil)
}

func TestConductResearchEndToEnd(t *testing.T) {
	srv := newResearchServer(t)
	defer srv.Close()
	repo := research.NewMemoryRepository()
	orch := newOrchestrator(srv.URL, repo)

	result, err := orch.Conduct(context.Background(), research.Request{Keyword: "best running shoes", Geo: "us", NumResults: 5})
	if err != nil {
		t.Fatalf("Conduct returned error: %v", err)
	}
	if result.ID == "" || result.Keyword != "best running shoes" || result.Geo != "us" {
		t.Fatalf("unexpected result header %+v", result)
	}
	if len(result.SERPResults) != 5 {
		t.Fatalf("expected 5 serp results, got %d", len(result.SERPResults))
	}
	for i, r := range result.SERPResults {
		if r.Position != i+1 {
			t.Fatalf("expected rank order, got position %d at %d", r.Position, i)
		}
	}
	if n := len(result.ScrapedContent); n > 5 || n != 4 {
		t.Fatalf("expected 4 scraped pages, got %d", n)
	}
	for _, page := range result.ScrapedContent {
		if page.WordCount != len(strings.Fields(page.Content)) {
			t.Fatalf("word count %d does not match content of %s", page.WordCount, page.URL)
		}
	}
	if len(result.FailedURLs) != 1 || !strings.HasSuffix(result.FailedURLs[0], "/p3") {
		t.Fatalf("unexpected failed urls %v", result.FailedURLs)
	}
	if len(result.PeopleAlsoAsk) != 1 {
		t.Fatalf("expected people also ask, got %v", result.PeopleAlsoAsk)
	}

	stored, err := repo.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("repo.Get returned error: %v", err)
	}
	if stored.ID != result.ID || len(stored.ScrapedContent) != len(result.ScrapedContent) {
		t.Fatalf("stored result differs: %+v", stored)
	}
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, search.Request) (search.Response, error) {
	return search.Response{}, services.ExternalService("serper", "search", "http 401: bad key", 401, nil)
}

type countingScraper struct{ calls int }

func (c *countingScraper) ScrapeURLs(context.Context, []string, scrape.Options) scrape.Batch {
	c.calls++
	return scrape.Batch{}
}

func (c *countingScraper) Search(context.Context, string, scrape.SearchOptions) ([]scrape.Page, error) {
	c.calls++
	return nil, nil
}

func TestSearchFailureAbortsResearch(t *testing.T) {
	scraper := &countingScraper{}
	repo := research.NewMemoryRepository()
	orch := research.NewOrchestrator(failingSearcher{}, scraper, repo, nil)

	_, err := orch.Conduct(context.Background(), research.Request{Keyword: "shoes"})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if scraper.calls != 0 {
		t.Fatal("scraping must not run without search results")
	}
	if all, _ := repo.List(context.Background(), 0); len(all) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(all))
	}
}

func TestConductRejectsEmptyKeyword(t *testing.T) {
	orch := research.NewOrchestrator(failingSearcher{}, &countingScraper{}, nil, nil)
	if _, err := orch.Conduct(context.Background(), research.Request{Keyword: "  "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type fixedSearcher struct{ links []string }

func (f fixedSearcher) Search(_ context.Context, req search.Request) (search.Response, error) {
	resp := search.Response{Keyword: req.Keyword, Geo: "us"}
	for i, link := range f.links {
		resp.Results = append(resp.Results, search.Result{Title: link, Link: link, Position: i + 1})
	}
	return resp, nil
}

type fixedScraper struct{ pages []scrape.Page }

func (f fixedScraper) ScrapeURLs(context.Context, []string, scrape.Options) scrape.Batch {
	return scrape.Batch{Pages: f.pages}
}

func (f fixedScraper) Search(context.Context, string, scrape.SearchOptions) ([]scrape.Page, error) {
	return f.pages, nil
}

func TestConductDropsNearDuplicatePages(t *testing.T) {
	now := time.Now()
	body := "the best running shoes for beginners balance cushioning weight and price"
	pages := []scrape.Page{
		scrape.NewPage("https://a.example", "A", body, 0, now),
		scrape.NewPage("https://b.example", "B", body+" today", 0, now),
		scrape.NewPage("https://c.example", "C", "", 0, now),
		scrape.NewPage("https://d.example", "D", "trail running demands aggressive lugs and rock plates", 0, now),
	}
	orch := research.NewOrchestrator(fixedSearcher{links: []string{"https://a.example"}}, fixedScraper{pages: pages}, nil, nil)

	result, err := orch.Conduct(context.Background(), research.Request{Keyword: "running shoes"})
	if err != nil {
		t.Fatalf("Conduct returned error: %v", err)
	}
	if len(result.ScrapedContent) != 2 {
		t.Fatalf("expected 2 distinct pages, got %d", len(result.ScrapedContent))
	}
	if result.ScrapedContent[0].URL != "https://a.example" || result.ScrapedContent[1].URL != "https://d.example" {
		t.Fatalf("unexpected pages kept: %s, %s", result.ScrapedContent[0].URL, result.ScrapedContent[1].URL)
	}
}

func TestStartThenGet(t *testing.T) {
	srv := newResearchServer(t)
	defer srv.Close()
	orch := newOrchestrator(srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := orch.Start(ctx, research.Request{Keyword: "best running shoes", NumResults: 5})
	cancel()
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	orch.Wait()

	result, err := orch.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if result.ID != id || len(result.SERPResults) != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
	if run, ok := orch.Run(id); !ok || run.Running || run.FinishedAt.IsZero() {
		t.Fatalf("unexpected run state %+v", run)
	}
	if _, err := orch.Get(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStartRecordsFailure(t *testing.T) {
	orch := research.NewOrchestrator(failingSearcher{}, &countingScraper{}, nil, nil)
	id, err := orch.Start(context.Background(), research.Request{Keyword: "shoes"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	orch.Wait()
	if _, err := orch.Get(context.Background(), id); !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected recorded failure, got %v", err)
	}
	if run, _ := orch.Run(id); !strings.Contains(run.Error, "bad key") {
		t.Fatalf("expected failure message, got %q", run.Error)
	}
}
