package scrape

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"seoforge/internal/cache"
	"seoforge/internal/limiter"
	"seoforge/internal/logging"
	"seoforge/internal/retry"
	"seoforge/internal/services"
)

const indexTimeout = 30 * time.Second

// Failure records why one URL in a batch could not be scraped.
type Failure struct {
	URL string
	Err error
}

// Batch is the outcome of ScrapeURLs: every page that was cached or fetched,
// plus the URLs that failed after retries.
type Batch struct {
	Pages    []Page
	Failures []Failure
	Cached   int
}

// Client scrapes pages through a Fetcher with caching, bounded concurrency,
// and per-URL retries.
type Client struct {
	fetcher  Fetcher
	cache    *cache.Cache[Page]
	limiter  *limiter.Limiter
	policy   retry.Policy
	indexer  Indexer
	maxChars int
	logger   *slog.Logger

	indexing sync.WaitGroup
}

// Option customizes a Client.
type Option func(*Client)

// WithIndexer enables best-effort indexing of fetched pages.
func WithIndexer(indexer Indexer) Option {
	return func(c *Client) { c.indexer = indexer }
}

// WithMaxChars sets the default content cap.
func WithMaxChars(n int) Option {
	return func(c *Client) { c.maxChars = n }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient wires a fetcher with its cache, limiter, and retry policy. A nil
// cache disables caching; a nil limiter admits one fetch at a time.
func NewClient(fetcher Fetcher, pages *cache.Cache[Page], lim *limiter.Limiter, policy retry.Policy, opts ...Option) *Client {
	if pages == nil {
		pages = cache.Disabled[Page]("pages")
	}
	if lim == nil {
		lim = limiter.New("scrape", 1)
	}
	c := &Client{fetcher: fetcher, cache: pages, limiter: lim, policy: policy}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "scrape")
	return c
}

// ScrapeURL returns the page for rawURL, from cache when live, otherwise by
// fetching under the limiter and retry policy. A fetched page is cached and
// handed to the indexer in the background.
func (c *Client) ScrapeURL(ctx context.Context, rawURL string, opts Options) (Page, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return Page{}, err
	}
	key := cache.PageKey(target)
	if page, ok := c.cache.Get(ctx, key); ok {
		return page, nil
	}
	return c.fetchAndStore(ctx, target, key, opts)
}

// ScrapeURLs scrapes every URL, tolerating individual failures. Cached pages
// are served without a fetch; the rest run concurrently up to the limiter cap,
// each with its own retries. Pages are returned in input order; duplicate URLs
// are scraped once.
func (c *Client) ScrapeURLs(ctx context.Context, urls []string, opts Options) Batch {
	ctx, span := otel.Tracer("seoforge/scrape").Start(ctx, "scrape.batch")
	defer span.End()
	logger := logging.WithContext(ctx, c.logger)

	type target struct {
		url string
		key string
	}
	var (
		batch   Batch
		targets []target
		seen    = make(map[string]struct{}, len(urls))
	)
	for _, raw := range urls {
		u, err := validateURL(raw)
		if err != nil {
			batch.Failures = append(batch.Failures, Failure{URL: raw, Err: err})
			continue
		}
		key := cache.PageKey(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, target{url: u, key: key})
	}

	keys := make([]string, len(targets))
	for i, t := range targets {
		keys[i] = t.key
	}
	cached := c.cache.GetMany(ctx, keys)

	results := make([]*Page, len(targets))
	errs := make([]error, len(targets))
	var group errgroup.Group
	for i, t := range targets {
		if page, ok := cached[t.key]; ok {
			results[i] = &page
			batch.Cached++
			continue
		}
		group.Go(func() error {
			page, err := c.fetchAndStore(ctx, t.url, t.key, opts)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &page
			return nil
		})
	}
	_ = group.Wait()

	for i, t := range targets {
		if results[i] != nil {
			batch.Pages = append(batch.Pages, *results[i])
			continue
		}
		batch.Failures = append(batch.Failures, Failure{URL: t.url, Err: errs[i]})
	}

	span.SetAttributes(
		attribute.Int("scrape.requested", len(urls)),
		attribute.Int("scrape.succeeded", len(batch.Pages)),
		attribute.Int("scrape.cached", batch.Cached),
		attribute.Int("scrape.failed", len(batch.Failures)),
	)
	if len(batch.Failures) > 0 {
		failed := make([]string, 0, len(batch.Failures))
		for _, f := range batch.Failures {
			failed = append(failed, f.URL)
		}
		logging.WarnWithContext(logger, "scrape batch partially failed", "scrape_batch_partial",
			logging.Int("requested", len(urls)),
			logging.Int("succeeded", len(batch.Pages)),
			logging.String("failed_urls", strings.Join(failed, ",")),
			logging.Error(batch.Failures[0].Err),
			logging.String(logging.FieldImpact, "research continues with fewer sources"),
		)
	}
	logger.Info("scrape batch completed",
		logging.Int("requested", len(urls)),
		logging.Int("succeeded", len(batch.Pages)),
		logging.Int("cached", batch.Cached),
		logging.Int("failed", len(batch.Failures)),
	)
	return batch
}

// Search runs the provider's fused search-and-scrape call. Results are cached
// per URL but the query itself is not.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Validation("scrape", "search query is required")
	}
	searcher, ok := c.fetcher.(Searcher)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "scrape", "search",
			c.fetcher.Name()+" does not support search", nil)
	}
	if opts.MaxChars == 0 {
		opts.MaxChars = c.maxChars
	}
	pages, err := limiter.Run(ctx, c.limiter, func(ctx context.Context) ([]Page, error) {
		return retry.Do(ctx, "scrape.search", c.policy, func(ctx context.Context) ([]Page, error) {
			return searcher.SearchPages(ctx, query, opts)
		})
	})
	if err != nil {
		return nil, err
	}
	for _, page := range pages {
		if page.Content == "" {
			continue
		}
		if err := c.cache.Set(ctx, cache.PageKey(page.URL), page); err != nil {
			c.logger.Debug("page cache write failed", logging.String("url", page.URL), logging.Error(err))
		}
	}
	return pages, nil
}

// WaitIndexing blocks until background indexing started so far has finished.
func (c *Client) WaitIndexing() {
	c.indexing.Wait()
}

func (c *Client) fetchAndStore(ctx context.Context, target, key string, opts Options) (Page, error) {
	if opts.MaxChars == 0 {
		opts.MaxChars = c.maxChars
	}
	ctx, span := otel.Tracer("seoforge/scrape").Start(ctx, "scrape.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("scrape.url", target), attribute.String("scrape.provider", c.fetcher.Name()))

	page, err := retry.Do(ctx, "scrape", c.policy, func(ctx context.Context) (Page, error) {
		return limiter.Run(ctx, c.limiter, func(ctx context.Context) (Page, error) {
			return c.fetcher.Fetch(ctx, target, opts)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return Page{}, err
	}
	if page.URL == "" {
		page.URL = target
	}
	if page.Source == "" {
		page.Source = c.fetcher.Name()
	}

	if err := c.cache.Set(ctx, key, page); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "page cache write failed", "page_cache_write_failed",
			logging.String("url", target),
			logging.Error(err),
			logging.String(logging.FieldImpact, "page will be fetched again next time"))
	}
	c.index(ctx, page)
	return page, nil
}

// index hands page to the indexer on a detached goroutine. The caller's
// cancellation does not abort indexing and indexing errors never propagate.
func (c *Client) index(ctx context.Context, page Page) {
	if c.indexer == nil {
		return
	}
	logger := logging.WithContext(ctx, c.logger)
	bg := context.WithoutCancel(ctx)
	c.indexing.Add(1)
	go func() {
		defer c.indexing.Done()
		ictx, cancel := context.WithTimeout(bg, indexTimeout)
		defer cancel()
		if err := c.indexer.IndexPage(ictx, page); err != nil {
			logging.WarnWithContext(logger, "page indexing failed", "page_index_failed",
				logging.String("url", page.URL),
				logging.Error(err),
				logging.String(logging.FieldImpact, "page is cached but not indexed"))
		}
	}()
}

func validateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", services.Validation("scrape", "invalid url "+strconv.Quote(trimmed))
	}
	return trimmed, nil
}
