package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"seoforge/internal/cache"
	"seoforge/internal/logging"
	"seoforge/internal/retry"
	"seoforge/internal/services"
)

// Result is one organic SERP entry.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// Question is a "people also ask" entry.
type Question struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Request describes a SERP query. Empty Geo and zero NumResults take the
// client defaults.
type Request struct {
	Keyword    string
	Geo        string
	NumResults int
}

// Response is the normalized SERP for one query.
type Response struct {
	Keyword         string     `json:"keyword"`
	Geo             string     `json:"geo"`
	Results         []Result   `json:"results"`
	PeopleAlsoAsk   []Question `json:"people_also_ask,omitempty"`
	RelatedSearches []string   `json:"related_searches,omitempty"`
	FetchedAt       time.Time  `json:"fetched_at"`
}

// Links returns the result URLs in rank order.
func (r Response) Links() []string {
	links := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Link != "" {
			links = append(links, res.Link)
		}
	}
	return links
}

// Backend performs one raw query against a SERP provider.
type Backend interface {
	Name() string
	Query(ctx context.Context, req Request) (Response, error)
}

// Client is the cache-first, retrying search entry point.
type Client struct {
	backend    Backend
	cache      *cache.Cache[Response]
	policy     retry.Policy
	defaultGeo string
	defaultNum int
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithDefaults sets the geo and result count used when a request omits them.
func WithDefaults(geo string, numResults int) Option {
	return func(c *Client) {
		if geo = strings.ToLower(strings.TrimSpace(geo)); geo != "" {
			c.defaultGeo = geo
		}
		if numResults > 0 {
			c.defaultNum = numResults
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient wires a backend with a cache and retry policy. A nil cache
// disables caching.
func NewClient(backend Backend, results *cache.Cache[Response], policy retry.Policy, opts ...Option) *Client {
	if results == nil {
		results = cache.Disabled[Response]("search")
	}
	c := &Client{
		backend:    backend,
		cache:      results,
		policy:     policy,
		defaultGeo: "us",
		defaultNum: 10,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "search")
	return c
}

// Search returns the SERP for req. A live cache entry is returned without any
// provider call; otherwise the provider is queried under the retry policy and
// a successful response is cached. Failures are never cached.
func (c *Client) Search(ctx context.Context, req Request) (Response, error) {
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return Response{}, services.Validation("search", "keyword is required")
	}
	req.Geo = strings.ToLower(strings.TrimSpace(req.Geo))
	if req.Geo == "" {
		req.Geo = c.defaultGeo
	}
	if req.NumResults <= 0 {
		req.NumResults = c.defaultNum
	}

	ctx, span := otel.Tracer("seoforge/search").Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.keyword", req.Keyword),
		attribute.String("search.geo", req.Geo),
		attribute.String("search.provider", c.backend.Name()),
	)
	logger := logging.WithContext(ctx, c.logger)

	key := cache.SearchKey(req.Keyword, req.Geo, req.NumResults)
	if cached, ok := c.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		logger.Debug("search cache hit", logging.String("keyword", req.Keyword), logging.String("geo", req.Geo))
		return cached, nil
	}

	resp, err := retry.Do(ctx, "search", c.policy, func(ctx context.Context) (Response, error) {
		return c.backend.Query(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		logger.Error("search failed",
			logging.Args(append(logging.ErrorAttrs(err),
				logging.String("keyword", req.Keyword),
				logging.String(logging.FieldProvider, c.backend.Name()),
				logging.String(logging.FieldEventType, "search_failed"),
			)...)...)
		return Response{}, err
	}

	resp = normalize(resp, req, c.now())
	if err := c.cache.Set(ctx, key, resp); err != nil {
		logging.WarnWithContext(logger, "search cache write failed", "search_cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next identical query will call the provider again"))
	}
	logger.Info("search completed",
		logging.String("keyword", req.Keyword),
		logging.String("geo", req.Geo),
		logging.Int("results", len(resp.Results)),
		logging.Int("questions", len(resp.PeopleAlsoAsk)),
	)
	return resp, nil
}

func normalize(resp Response, req Request, now time.Time) Response {
	resp.Keyword = req.Keyword
	resp.Geo = req.Geo
	if resp.FetchedAt.IsZero() {
		resp.FetchedAt = now.UTC()
	}
	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		r.Link = strings.TrimSpace(r.Link)
		if r.Link == "" {
			continue
		}
		r.Title = strings.TrimSpace(r.Title)
		r.Snippet = strings.TrimSpace(r.Snippet)
		if r.Position <= 0 {
			r.Position = len(results) + 1
		}
		results = append(results, r)
		if req.NumResults > 0 && len(results) == req.NumResults {
			break
		}
	}
	resp.Results = results
	return resp
}
