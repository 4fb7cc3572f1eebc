package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var validSizes = map[string]struct{}{"short": {}, "medium": {}, "long": {}, "pillar": {}}

// Validate ensures the configuration is usable. Credentials are not required
// here so offline commands (cache, config) keep working; `seoforge doctor`
// reports missing keys.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"concurrency.scrape":            c.Concurrency.Scrape,
		"concurrency.llm":               c.Concurrency.LLM,
		"search.default_num_results":    c.Search.DefaultNumResults,
		"search.timeout_seconds":        c.Search.TimeoutSeconds,
		"scrape.timeout_seconds":        c.Scrape.TimeoutSeconds,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"cache.ttl_hours":               c.Cache.TTLHours,
		"workflow.poll_interval_ms":     c.Workflow.PollIntervalMS,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("cache.backend must be memory or sqlite, got %q", c.Cache.Backend)
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return errors.New("telemetry.otlp_endpoint must be set when telemetry.enabled is true")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.Search.Provider != defaultSearchProvider {
		return fmt.Errorf("search.provider %q is not supported (want %q)", c.Search.Provider, defaultSearchProvider)
	}
	if len(c.Search.DefaultGeo) != 2 {
		return fmt.Errorf("search.default_geo must be a two-letter country code, got %q", c.Search.DefaultGeo)
	}
	switch c.Scrape.Provider {
	case "firecrawl", "direct":
	default:
		return fmt.Errorf("scrape.provider must be firecrawl or direct, got %q", c.Scrape.Provider)
	}
	switch c.LLM.DefaultProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter, ProviderMock:
	default:
		return fmt.Errorf("llm.default_provider %q is not supported", c.LLM.DefaultProvider)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must not be negative")
	}
	if c.Retry.InitialDelayMS < 0 || c.Retry.MaxDelayMS < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.Retry.MaxDelayMS < c.Retry.InitialDelayMS {
		return errors.New("retry.max_delay_ms must be greater than or equal to retry.initial_delay_ms")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if _, ok := validSizes[c.Workflow.DefaultSize]; !ok {
		return fmt.Errorf("workflow.default_size must be one of short, medium, long, pillar; got %q", c.Workflow.DefaultSize)
	}
	if _, err := language.Parse(c.Workflow.DefaultLanguage); err != nil {
		return fmt.Errorf("workflow.default_language %q: %w", c.Workflow.DefaultLanguage, err)
	}
	switch c.Workflow.Generator {
	case "workflow", "quick":
	default:
		return fmt.Errorf("workflow.generator must be workflow or quick, got %q", c.Workflow.Generator)
	}
	return nil
}

// MissingCredentials lists credential keys the configured providers need but
// do not have.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Search.APIKey == "" {
		missing = append(missing, "search.api_key")
	}
	if c.Scrape.Provider == "firecrawl" && c.Scrape.APIKey == "" {
		missing = append(missing, "scrape.api_key")
	}
	if c.LLM.DefaultProvider != ProviderMock {
		if p, ok := c.LLM.Provider(c.LLM.DefaultProvider); ok && strings.TrimSpace(p.APIKey) == "" {
			missing = append(missing, "llm."+c.LLM.DefaultProvider+".api_key")
		}
	}
	return missing
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
