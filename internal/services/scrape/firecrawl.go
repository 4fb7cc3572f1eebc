package scrape

import (
	"context"
	"net/http"
	"strings"
	"time"

	"seoforge/internal/config"
	"seoforge/internal/services"
	"seoforge/internal/services/apiclient"
)

const firecrawlName = "firecrawl"

// Firecrawl fetches pages through the Firecrawl v1 API, which renders the page
// and returns its main content as markdown.
type Firecrawl struct {
	api     *apiclient.Client
	hasKey  bool
	timeout time.Duration
	now     func() time.Time
}

// NewFirecrawl builds a Firecrawl fetcher from configuration.
func NewFirecrawl(cfg config.Scrape) *Firecrawl {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	return &Firecrawl{
		api:     apiclient.New(firecrawlName, cfg.BaseURL, cfg.Timeout(), header),
		hasKey:  strings.TrimSpace(cfg.APIKey) != "",
		timeout: cfg.Timeout(),
		now:     time.Now,
	}
}

func (f *Firecrawl) Name() string { return firecrawlName }

type firecrawlScrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	Timeout         int64    `json:"timeout,omitempty"`
}

type firecrawlDocument struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown"`
	Metadata    struct {
		Title      string `json:"title"`
		SourceURL  string `json:"sourceURL"`
		StatusCode int    `json:"statusCode"`
	} `json:"metadata"`
}

type firecrawlScrapeResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Data    firecrawlDocument `json:"data"`
}

func (f *Firecrawl) Fetch(ctx context.Context, url string, opts Options) (Page, error) {
	if !f.hasKey {
		return Page{}, services.Wrap(services.ErrConfiguration, firecrawlName, "scrape", "api key not configured", nil)
	}
	req := firecrawlScrapeRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		OnlyMainContent: !opts.IncludeChrome,
		Timeout:         f.timeout.Milliseconds(),
	}
	var resp firecrawlScrapeResponse
	if err := f.api.PostJSON(ctx, "scrape", "/v1/scrape", req, &resp); err != nil {
		return Page{}, err
	}
	if !resp.Success {
		return Page{}, services.ExternalService(firecrawlName, "scrape", firstNonEmpty(resp.Error, "request unsuccessful"), 0, nil)
	}
	if status := resp.Data.Metadata.StatusCode; status >= http.StatusBadRequest {
		return Page{}, apiclient.StatusError(firecrawlName, "scrape", status, nil, []byte("target page returned an error"))
	}
	title := firstNonEmpty(resp.Data.Metadata.Title, resp.Data.Title)
	page := NewPage(url, title, resp.Data.Markdown, opts.MaxChars, f.now())
	page.Source = firecrawlName
	return page, nil
}

type firecrawlSearchRequest struct {
	Query         string `json:"query"`
	Limit         int    `json:"limit,omitempty"`
	Country       string `json:"country,omitempty"`
	ScrapeOptions struct {
		Formats []string `json:"formats"`
	} `json:"scrapeOptions"`
}

type firecrawlSearchResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Data    []firecrawlDocument `json:"data"`
}

// SearchPages searches and scrapes the top results in one call. Results are
// returned in rank order; entries without content are kept with an empty body.
func (f *Firecrawl) SearchPages(ctx context.Context, query string, opts SearchOptions) ([]Page, error) {
	if !f.hasKey {
		return nil, services.Wrap(services.ErrConfiguration, firecrawlName, "search", "api key not configured", nil)
	}
	req := firecrawlSearchRequest{Query: query, Limit: opts.Limit, Country: strings.ToLower(opts.Geo)}
	req.ScrapeOptions.Formats = []string{"markdown"}

	var resp firecrawlSearchResponse
	if err := f.api.PostJSON(ctx, "search", "/v1/search", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, services.ExternalService(firecrawlName, "search", firstNonEmpty(resp.Error, "request unsuccessful"), 0, nil)
	}
	now := f.now()
	pages := make([]Page, 0, len(resp.Data))
	for _, doc := range resp.Data {
		url := firstNonEmpty(doc.URL, doc.Metadata.SourceURL)
		if url == "" {
			continue
		}
		page := NewPage(url, firstNonEmpty(doc.Title, doc.Metadata.Title), doc.Markdown, opts.MaxChars, now)
		page.Source = firecrawlName
		pages = append(pages, page)
	}
	return pages, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
