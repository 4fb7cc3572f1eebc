package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSearch()
	c.normalizeScrape()
	c.normalizeLLM()
	c.normalizeCache()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir()
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSearch() {
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	if c.Search.Provider == "" {
		c.Search.Provider = defaultSearchProvider
	}
	c.Search.BaseURL = strings.TrimRight(strings.TrimSpace(c.Search.BaseURL), "/")
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = defaultSearchBaseURL
	}
	c.Search.APIKey = firstNonEmpty(c.Search.APIKey, lookupEnv("SERPER_API_KEY"))
	c.Search.DefaultGeo = strings.ToLower(strings.TrimSpace(c.Search.DefaultGeo))
	if c.Search.DefaultGeo == "" {
		c.Search.DefaultGeo = defaultSearchGeo
	}
	if c.Search.DefaultNumResults <= 0 {
		c.Search.DefaultNumResults = defaultSearchNumResults
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = defaultSearchTimeoutSeconds
	}
}

func (c *Config) normalizeScrape() {
	c.Scrape.Provider = strings.ToLower(strings.TrimSpace(c.Scrape.Provider))
	if c.Scrape.Provider == "" {
		c.Scrape.Provider = defaultScrapeProvider
	}
	c.Scrape.BaseURL = strings.TrimRight(strings.TrimSpace(c.Scrape.BaseURL), "/")
	if c.Scrape.BaseURL == "" {
		c.Scrape.BaseURL = defaultScrapeBaseURL
	}
	c.Scrape.APIKey = firstNonEmpty(c.Scrape.APIKey, lookupEnv("FIRECRAWL_API_KEY"))
	c.Scrape.UserAgent = strings.TrimSpace(c.Scrape.UserAgent)
	if c.Scrape.UserAgent == "" {
		c.Scrape.UserAgent = defaultScrapeUserAgent
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		c.Scrape.TimeoutSeconds = defaultScrapeTimeoutSeconds
	}
	if c.Scrape.MaxContentChars < 0 {
		c.Scrape.MaxContentChars = 0
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.DefaultProvider = strings.ToLower(strings.TrimSpace(c.LLM.DefaultProvider))
	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = defaultLLMProvider
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}

	normalizeProvider(&c.LLM.OpenAI, defaultOpenAIBaseURL, defaultOpenAIModel, "OPENAI_API_KEY")
	normalizeProvider(&c.LLM.Anthropic, defaultAnthropicBaseURL, defaultAnthropicModel, "ANTHROPIC_API_KEY")
	normalizeProvider(&c.LLM.Gemini, "", defaultGeminiModel, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	normalizeProvider(&c.LLM.OpenRouter, defaultOpenRouterBaseURL, defaultOpenRouterModel, "OPENROUTER_API_KEY")
}

func normalizeProvider(p *LLMProvider, baseURL, model string, envKeys ...string) {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	p.Model = strings.TrimSpace(p.Model)
	if p.Model == "" {
		p.Model = model
	}
	p.APIKey = strings.TrimSpace(p.APIKey)
	for _, key := range envKeys {
		p.APIKey = firstNonEmpty(p.APIKey, lookupEnv(key))
	}
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollIntervalMS <= 0 {
		c.Workflow.PollIntervalMS = defaultPollIntervalMS
	}
	c.Workflow.DefaultTone = strings.TrimSpace(c.Workflow.DefaultTone)
	if c.Workflow.DefaultTone == "" {
		c.Workflow.DefaultTone = defaultTone
	}
	c.Workflow.DefaultSize = strings.ToLower(strings.TrimSpace(c.Workflow.DefaultSize))
	if c.Workflow.DefaultSize == "" {
		c.Workflow.DefaultSize = defaultSize
	}
	c.Workflow.DefaultLanguage = strings.TrimSpace(c.Workflow.DefaultLanguage)
	if c.Workflow.DefaultLanguage == "" {
		c.Workflow.DefaultLanguage = defaultLanguage
	}
	c.Workflow.Generator = strings.ToLower(strings.TrimSpace(c.Workflow.Generator))
	if c.Workflow.Generator == "" {
		c.Workflow.Generator = defaultGenerator
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
