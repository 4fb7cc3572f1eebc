package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"seoforge/internal/config"
)

func writeConfig(t *testing.T, payload any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seoforge.toml")
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	t.Setenv("SERPER_API_KEY", "env-serper")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Search.APIKey != "env-serper" {
		t.Fatalf("expected serper key from env, got %q", cfg.Search.APIKey)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialDelay() != time.Second || cfg.Retry.MaxDelay() != 30*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Concurrency.Scrape != 5 || cfg.Concurrency.LLM != 3 {
		t.Fatalf("unexpected concurrency defaults: %+v", cfg.Concurrency)
	}
	if cfg.Cache.TTL() != 24*time.Hour {
		t.Fatalf("unexpected cache ttl %s", cfg.Cache.TTL())
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected absolute data dir, got %q", cfg.Paths.DataDir)
	}
}

func TestLoadCustomPath(t *testing.T) {
	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Search struct {
			APIKey     string `toml:"api_key"`
			DefaultGeo string `toml:"default_geo"`
		} `toml:"search"`
		Retry struct {
			MaxRetries     int `toml:"max_retries"`
			InitialDelayMS int `toml:"initial_delay_ms"`
			MaxDelayMS     int `toml:"max_delay_ms"`
		} `toml:"retry"`
		Cache struct {
			Backend string `toml:"backend"`
		} `toml:"cache"`
	}
	custom := payload{}
	dataDir := t.TempDir()
	custom.Paths.DataDir = dataDir
	custom.Search.APIKey = "file-key"
	custom.Search.DefaultGeo = "GB"
	custom.Retry.MaxRetries = 5
	custom.Retry.InitialDelayMS = 200
	custom.Retry.MaxDelayMS = 800
	custom.Cache.Backend = "Memory"
	path := writeConfig(t, custom)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if cfg.Search.APIKey != "file-key" {
		t.Fatalf("expected key from file, got %q", cfg.Search.APIKey)
	}
	if cfg.Search.DefaultGeo != "gb" {
		t.Fatalf("expected lowercased geo, got %q", cfg.Search.DefaultGeo)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.MaxDelay() != 800*time.Millisecond {
		t.Fatalf("unexpected retry: %+v", cfg.Retry)
	}
	if cfg.Cache.Backend != "memory" {
		t.Fatalf("expected normalized backend, got %q", cfg.Cache.Backend)
	}
	if cfg.DatabasePath() != filepath.Join(dataDir, "seoforge.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.Paths.LogDir != filepath.Join(dataDir, "logs") {
		t.Fatalf("expected log dir under data dir, got %q", cfg.Paths.LogDir)
	}
}

func TestSeoforgeEnvOverridesFile(t *testing.T) {
	type payload struct {
		Search struct {
			APIKey string `toml:"api_key"`
		} `toml:"search"`
		LLM struct {
			DefaultProvider string `toml:"default_provider"`
			OpenAI          struct {
				APIKey string `toml:"api_key"`
			} `toml:"openai"`
		} `toml:"llm"`
	}
	custom := payload{}
	custom.Search.APIKey = "file-serper"
	custom.LLM.DefaultProvider = "openai"
	custom.LLM.OpenAI.APIKey = "file-openai"
	path := writeConfig(t, custom)

	t.Setenv("SEOFORGE_SEARCH_API_KEY", "env-serper")
	t.Setenv("SEOFORGE_OPENAI_API_KEY", "env-openai")
	t.Setenv("SEOFORGE_LLM_PROVIDER", "anthropic")
	t.Setenv("SEOFORGE_CONCURRENCY_SCRAPE", "9")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Search.APIKey != "env-serper" {
		t.Fatalf("expected env serper key, got %q", cfg.Search.APIKey)
	}
	if cfg.LLM.OpenAI.APIKey != "env-openai" {
		t.Fatalf("expected env openai key, got %q", cfg.LLM.OpenAI.APIKey)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("expected env provider, got %q", cfg.LLM.DefaultProvider)
	}
	if cfg.Concurrency.Scrape != 9 {
		t.Fatalf("expected env concurrency, got %d", cfg.Concurrency.Scrape)
	}
}

func TestConventionalKeyFillsOnlyWhenEmpty(t *testing.T) {
	type payload struct {
		Scrape struct {
			APIKey string `toml:"api_key"`
		} `toml:"scrape"`
	}
	custom := payload{}
	custom.Scrape.APIKey = "file-firecrawl"
	path := writeConfig(t, custom)
	t.Setenv("FIRECRAWL_API_KEY", "env-firecrawl")
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Scrape.APIKey != "file-firecrawl" {
		t.Fatalf("expected file key to win over conventional env, got %q", cfg.Scrape.APIKey)
	}
	if cfg.LLM.Anthropic.APIKey != "env-anthropic" {
		t.Fatalf("expected anthropic key from env, got %q", cfg.LLM.Anthropic.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative retries", func(c *config.Config) { c.Retry.MaxRetries = -1 }, "retry.max_retries"},
		{"max below initial", func(c *config.Config) { c.Retry.MaxDelayMS = 10; c.Retry.InitialDelayMS = 100 }, "retry.max_delay_ms"},
		{"zero scrape concurrency", func(c *config.Config) { c.Concurrency.Scrape = 0 }, "concurrency.scrape"},
		{"unknown provider", func(c *config.Config) { c.LLM.DefaultProvider = "cohere" }, "llm.default_provider"},
		{"bad cache backend", func(c *config.Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"bad size", func(c *config.Config) { c.Workflow.DefaultSize = "huge" }, "workflow.default_size"},
		{"bad language", func(c *config.Config) { c.Workflow.DefaultLanguage = "not a tag" }, "workflow.default_language"},
		{"bad geo", func(c *config.Config) { c.Search.DefaultGeo = "usa" }, "search.default_geo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	cfg := config.Default()
	missing := cfg.MissingCredentials()
	want := []string{"search.api_key", "scrape.api_key", "llm.openai.api_key"}
	if strings.Join(missing, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected missing credentials %v", missing)
	}
	cfg.LLM.DefaultProvider = config.ProviderMock
	cfg.Scrape.Provider = "direct"
	cfg.Search.APIKey = "k"
	if got := cfg.MissingCredentials(); len(got) != 0 {
		t.Fatalf("expected no missing credentials, got %v", got)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample to load cleanly, exists=%v err=%v", exists, err)
	}
}
