package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir" env:"SEOFORGE_DATA_DIR"`
	LogDir  string `toml:"log_dir" env:"SEOFORGE_LOG_DIR"`
}

// Search contains configuration for the SERP provider.
type Search struct {
	Provider          string `toml:"provider"`
	BaseURL           string `toml:"base_url" env:"SEOFORGE_SEARCH_BASE_URL"`
	APIKey            string `toml:"api_key" env:"SEOFORGE_SEARCH_API_KEY"`
	DefaultGeo        string `toml:"default_geo" env:"SEOFORGE_SEARCH_DEFAULT_GEO"`
	DefaultNumResults int    `toml:"default_num_results"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Scrape contains configuration for page scraping.
type Scrape struct {
	// Provider selects the fetch backend: "firecrawl" or "direct".
	Provider        string `toml:"provider" env:"SEOFORGE_SCRAPE_PROVIDER"`
	BaseURL         string `toml:"base_url" env:"SEOFORGE_SCRAPE_BASE_URL"`
	APIKey          string `toml:"api_key" env:"SEOFORGE_SCRAPE_API_KEY"`
	UserAgent       string `toml:"user_agent"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxContentChars int    `toml:"max_content_chars"`
	Indexing        bool   `toml:"indexing"`
}

// LLMProvider holds connection settings for one LLM backend.
type LLMProvider struct {
	APIKey  string `toml:"api_key" env:"API_KEY"`
	BaseURL string `toml:"base_url" env:"BASE_URL"`
	Model   string `toml:"model" env:"MODEL"`
}

// LLM contains provider registry configuration.
type LLM struct {
	DefaultProvider string      `toml:"default_provider" env:"SEOFORGE_LLM_PROVIDER"`
	TimeoutSeconds  int         `toml:"timeout_seconds"`
	Referer         string      `toml:"referer"`
	Title           string      `toml:"title"`
	OpenAI          LLMProvider `toml:"openai" envPrefix:"SEOFORGE_OPENAI_"`
	Anthropic       LLMProvider `toml:"anthropic" envPrefix:"SEOFORGE_ANTHROPIC_"`
	Gemini          LLMProvider `toml:"gemini" envPrefix:"SEOFORGE_GEMINI_"`
	OpenRouter      LLMProvider `toml:"openrouter" envPrefix:"SEOFORGE_OPENROUTER_"`
}

// Retry contains the default backoff policy for external calls.
type Retry struct {
	MaxRetries     int `toml:"max_retries" env:"SEOFORGE_RETRY_MAX_RETRIES"`
	InitialDelayMS int `toml:"initial_delay_ms"`
	MaxDelayMS     int `toml:"max_delay_ms"`
}

// Concurrency bounds in-flight scrape and LLM calls independently.
type Concurrency struct {
	Scrape int `toml:"scrape" env:"SEOFORGE_CONCURRENCY_SCRAPE"`
	LLM    int `toml:"llm" env:"SEOFORGE_CONCURRENCY_LLM"`
}

// Cache contains configuration for the search and page caches.
type Cache struct {
	Enabled  bool   `toml:"enabled" env:"SEOFORGE_CACHE_ENABLED"`
	Backend  string `toml:"backend"`
	TTLHours int    `toml:"ttl_hours"`
}

// Workflow contains article generation defaults.
type Workflow struct {
	PollIntervalMS  int    `toml:"poll_interval_ms"`
	DefaultTone     string `toml:"default_tone"`
	DefaultSize     string `toml:"default_size"`
	DefaultLanguage string `toml:"default_language"`
	// Generator selects how batch pages are produced: "workflow" or "quick".
	Generator string `toml:"generator"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" env:"SEOFORGE_NTFY_TOPIC"`
	RequestTimeout int    `toml:"request_timeout"`
	Workflow       bool   `toml:"workflow"`
	Batch          bool   `toml:"batch"`
	Errors         bool   `toml:"errors"`
}

// Telemetry contains OpenTelemetry export settings.
type Telemetry struct {
	Enabled      bool   `toml:"enabled" env:"SEOFORGE_OTEL_ENABLED"`
	OTLPEndpoint string `toml:"otlp_endpoint" env:"SEOFORGE_OTEL_ENDPOINT"`
	ServiceName  string `toml:"service_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"SEOFORGE_LOG_FORMAT"`
	Level  string `toml:"level" env:"SEOFORGE_LOG_LEVEL"`
}

// Config encapsulates all configuration values for seoforge.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Search: SERP provider endpoint, key, and defaults
//   - Scrape: page fetch backend and content limits
//   - LLM: provider registry and per-provider credentials
//   - Retry: backoff policy for every external call
//   - Concurrency: scrape and LLM admission limits
//   - Cache: TTL cache for search results and scraped pages
//   - Workflow: article defaults and status polling
//   - Notifications: ntfy push notification settings
//   - Telemetry: OTLP trace export
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Search        Search        `toml:"search"`
	Scrape        Scrape        `toml:"scrape"`
	LLM           LLM           `toml:"llm"`
	Retry         Retry         `toml:"retry"`
	Concurrency   Concurrency   `toml:"concurrency"`
	Cache         Cache         `toml:"cache"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Telemetry     Telemetry     `toml:"telemetry"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(xdg.ConfigHome, "seoforge", "config.toml"))
}

// Load locates, parses, and validates a configuration file. Values from
// SEOFORGE_* environment variables override the file. The returned config has
// all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("seoforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "seoforge.db")
}

// LockDir returns the directory holding per-project batch lock files.
func (c *Config) LockDir() string {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "locks")
}

// InitialDelay returns the first retry backoff.
func (r Retry) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMS) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r Retry) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// TTL returns the cache entry lifetime.
func (c Cache) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// PollInterval returns the workflow status polling interval.
func (w Workflow) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout for search calls.
func (s Search) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Timeout returns the per-request HTTP timeout for scrape calls.
func (s Scrape) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Timeout returns the per-request HTTP timeout for LLM calls.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Provider returns the settings for a named LLM provider.
func (l LLM) Provider(name string) (LLMProvider, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI:
		return l.OpenAI, true
	case ProviderAnthropic:
		return l.Anthropic, true
	case ProviderGemini:
		return l.Gemini, true
	case ProviderOpenRouter:
		return l.OpenRouter, true
	default:
		return LLMProvider{}, false
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
