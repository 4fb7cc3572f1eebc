package testsupport

import (
	"path/filepath"
	"testing"

	"seoforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// the mock LLM provider, and retries without backoff delay.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Search.APIKey = "test"
	cfgVal.Scrape.APIKey = "test"
	cfgVal.LLM.DefaultProvider = config.ProviderMock
	cfgVal.Retry.InitialDelayMS = 0
	cfgVal.Retry.MaxDelayMS = 0
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Telemetry.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSearchURL points the SERP client at a test server.
func WithSearchURL(url string) ConfigOption {
	return func(b *configBuilder) { b.cfg.Search.BaseURL = url }
}

// WithScrapeURL points the scrape client at a test server.
func WithScrapeURL(url string) ConfigOption {
	return func(b *configBuilder) { b.cfg.Scrape.BaseURL = url }
}

// WithDirectScrape switches scraping to plain HTTP fetches.
func WithDirectScrape() ConfigOption {
	return func(b *configBuilder) { b.cfg.Scrape.Provider = "direct" }
}

// WithRetries sets the retry count.
func WithRetries(n int) ConfigOption {
	return func(b *configBuilder) { b.cfg.Retry.MaxRetries = n }
}

// WithCacheBackend selects the cache backend.
func WithCacheBackend(name string) ConfigOption {
	return func(b *configBuilder) { b.cfg.Cache.Backend = name }
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
