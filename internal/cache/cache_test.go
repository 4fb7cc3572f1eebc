package cache_test

import (
	"context"
	"testing"
	"time"

	"seoforge/internal/cache"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type page struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

func newTestCache(clock *fakeClock, ttl time.Duration) *cache.Cache[page] {
	return cache.New[page]("pages", cache.NewMemoryBackend(), ttl,
		cache.WithClock(clock.Now), cache.WithPrefix(cache.PagePrefix))
}

func TestGetHonoursTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestCache(clock, time.Hour)

	key := cache.PageKey("https://example.com/a")
	if err := c.Set(ctx, key, page{Title: "A", Words: 10}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clock.now = clock.now.Add(59 * time.Minute)
	if got, ok := c.Get(ctx, key); !ok || got.Title != "A" {
		t.Fatalf("expected hit before ttl, got %+v %v", got, ok)
	}

	clock.now = clock.now.Add(time.Minute)
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("expected miss exactly at ttl")
	}
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock, time.Hour)
	key := cache.PageKey("https://example.com/a")
	_ = c.Set(ctx, key, page{Title: "old"})
	_ = c.Set(ctx, key, page{Title: "new"})
	if got, _ := c.Get(ctx, key); got.Title != "new" {
		t.Fatalf("expected overwrite, got %+v", got)
	}
}

func TestGetManyReturnsOnlyLiveHits(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newTestCache(clock, time.Hour)

	stale := cache.PageKey("https://example.com/stale")
	fresh := cache.PageKey("https://example.com/fresh")
	missing := cache.PageKey("https://example.com/missing")
	_ = c.Set(ctx, stale, page{Title: "stale"})
	clock.now = clock.now.Add(30 * time.Minute)
	_ = c.Set(ctx, fresh, page{Title: "fresh"})
	clock.now = clock.now.Add(45 * time.Minute)

	got := c.GetMany(ctx, []string{stale, fresh, missing})
	if len(got) != 1 || got[fresh].Title != "fresh" {
		t.Fatalf("expected only fresh entry, got %+v", got)
	}

	stats := c.Stats(ctx)
	if stats.Hits != 1 || stats.Misses != 2 || stats.Writes != 2 || stats.Entries != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPruneRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	backend := cache.NewMemoryBackend()
	pages := cache.New[page]("pages", backend, time.Hour, cache.WithClock(clock.Now), cache.WithPrefix(cache.PagePrefix))
	searches := cache.New[string]("search", backend, time.Hour, cache.WithClock(clock.Now), cache.WithPrefix(cache.SearchPrefix))

	_ = pages.Set(ctx, cache.PageKey("https://a.example"), page{Title: "a"})
	_ = searches.Set(ctx, cache.SearchKey("shoes", "us", 0), "serp")
	clock.now = clock.now.Add(2 * time.Hour)
	_ = pages.Set(ctx, cache.PageKey("https://b.example"), page{Title: "b"})

	removed, err := pages.Prune(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("expected one pruned page, got %d %v", removed, err)
	}
	if n, _ := backend.Count(ctx, ""); n != 2 {
		t.Fatalf("expected search entry untouched, total=%d", n)
	}
	cleared, err := searches.Clear(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("expected one cleared search entry, got %d %v", cleared, err)
	}
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c := cache.Disabled[page]("pages")
	if err := c.Set(ctx, "k", page{Title: "x"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss from disabled cache")
	}
	if got := c.GetMany(ctx, []string{"k"}); len(got) != 0 {
		t.Fatalf("expected no hits, got %v", got)
	}
}

func TestKeys(t *testing.T) {
	if a, b := cache.SearchKey("Best  Running Shoes", "US", 5), cache.SearchKey("best running shoes", "us", 5); a != b {
		t.Fatalf("expected equivalent search keys, got %q and %q", a, b)
	}
	if cache.SearchKey("shoes", "us", 0) == cache.SearchKey("shoes", "gb", 0) {
		t.Fatal("expected geo to distinguish search keys")
	}
	tests := map[string]string{
		"HTTPS://Example.COM/Path/":      "https://example.com/Path",
		"https://example.com/a?b=1#frag": "https://example.com/a?b=1",
		"  https://example.com/  ":       "https://example.com",
		"not a url":                      "not a url",
	}
	for in, want := range tests {
		if got := cache.NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
