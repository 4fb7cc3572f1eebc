package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Provider names accepted by llm.default_provider.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

const (
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultSearchProvider       = "serper"
	defaultSearchBaseURL        = "https://google.serper.dev"
	defaultSearchGeo            = "us"
	defaultSearchNumResults     = 10
	defaultSearchTimeoutSeconds = 30
	defaultScrapeProvider       = "firecrawl"
	defaultScrapeBaseURL        = "https://api.firecrawl.dev"
	defaultScrapeUserAgent      = "seoforge/dev (+https://github.com/seoforge)"
	defaultScrapeTimeoutSeconds = 60
	defaultScrapeMaxChars       = 20000
	defaultLLMProvider          = ProviderOpenAI
	defaultLLMTimeoutSeconds    = 120
	defaultLLMTitle             = "seoforge"
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultAnthropicBaseURL     = "https://api.anthropic.com/v1"
	defaultAnthropicModel       = "claude-sonnet-4-5"
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultOpenRouterBaseURL    = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel      = "google/gemini-3-flash-preview"
	defaultRetryMaxRetries      = 3
	defaultRetryInitialDelayMS  = 1000
	defaultRetryMaxDelayMS      = 30000
	defaultScrapeConcurrency    = 5
	defaultLLMConcurrency       = 3
	defaultCacheBackend         = "sqlite"
	defaultCacheTTLHours        = 24
	defaultPollIntervalMS       = 2000
	defaultTone                 = "professional"
	defaultSize                 = "medium"
	defaultLanguage             = "en"
	defaultGenerator            = "workflow"
	defaultNotifyTimeout        = 10
	defaultServiceName          = "seoforge"
)

func defaultDataDir() string {
	return filepath.Join(xdg.DataHome, "seoforge")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Paths: Paths{
			DataDir: dataDir,
			LogDir:  filepath.Join(dataDir, "logs"),
		},
		Search: Search{
			Provider:          defaultSearchProvider,
			BaseURL:           defaultSearchBaseURL,
			DefaultGeo:        defaultSearchGeo,
			DefaultNumResults: defaultSearchNumResults,
			TimeoutSeconds:    defaultSearchTimeoutSeconds,
		},
		Scrape: Scrape{
			Provider:        defaultScrapeProvider,
			BaseURL:         defaultScrapeBaseURL,
			UserAgent:       defaultScrapeUserAgent,
			TimeoutSeconds:  defaultScrapeTimeoutSeconds,
			MaxContentChars: defaultScrapeMaxChars,
			Indexing:        true,
		},
		LLM: LLM{
			DefaultProvider: defaultLLMProvider,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			Title:           defaultLLMTitle,
			OpenAI:          LLMProvider{BaseURL: defaultOpenAIBaseURL, Model: defaultOpenAIModel},
			Anthropic:       LLMProvider{BaseURL: defaultAnthropicBaseURL, Model: defaultAnthropicModel},
			Gemini:          LLMProvider{Model: defaultGeminiModel},
			OpenRouter:      LLMProvider{BaseURL: defaultOpenRouterBaseURL, Model: defaultOpenRouterModel},
		},
		Retry: Retry{
			MaxRetries:     defaultRetryMaxRetries,
			InitialDelayMS: defaultRetryInitialDelayMS,
			MaxDelayMS:     defaultRetryMaxDelayMS,
		},
		Concurrency: Concurrency{
			Scrape: defaultScrapeConcurrency,
			LLM:    defaultLLMConcurrency,
		},
		Cache: Cache{
			Enabled:  true,
			Backend:  defaultCacheBackend,
			TTLHours: defaultCacheTTLHours,
		},
		Workflow: Workflow{
			PollIntervalMS:  defaultPollIntervalMS,
			DefaultTone:     defaultTone,
			DefaultSize:     defaultSize,
			DefaultLanguage: defaultLanguage,
			Generator:       defaultGenerator,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Workflow:       true,
			Batch:          true,
			Errors:         true,
		},
		Telemetry: Telemetry{
			ServiceName: defaultServiceName,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
