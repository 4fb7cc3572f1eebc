package scrape

import (
	"context"
	"strings"
	"time"

	"seoforge/internal/textutil"
)

// Page is the extracted text of one URL.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	ScrapedAt time.Time `json:"scraped_at"`
	Source    string    `json:"source,omitempty"`
}

// NewPage builds a Page, truncating content to maxChars (when positive) and
// computing the word count once.
func NewPage(url, title, content string, maxChars int, at time.Time) Page {
	content = textutil.Truncate(strings.TrimSpace(content), maxChars)
	return Page{
		URL:       url,
		Title:     textutil.CollapseWhitespace(title),
		Content:   content,
		WordCount: textutil.WordCount(content),
		ScrapedAt: at.UTC(),
	}
}

// Options tune a scrape request.
type Options struct {
	// MaxChars caps stored content; zero uses the client default.
	MaxChars int
	// IncludeChrome keeps navigation, headers, and footers.
	IncludeChrome bool
}

// Fetcher retrieves and extracts one page.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string, opts Options) (Page, error)
}

// SearchOptions tune the fused search-and-scrape call.
type SearchOptions struct {
	Limit    int
	Geo      string
	MaxChars int
}

// Searcher is implemented by providers that search and scrape in one call.
type Searcher interface {
	SearchPages(ctx context.Context, query string, opts SearchOptions) ([]Page, error)
}

// Indexer receives freshly scraped pages for downstream lookup. Indexing is
// best effort.
type Indexer interface {
	IndexPage(ctx context.Context, page Page) error
}
