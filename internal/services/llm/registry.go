package llm

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"seoforge/internal/config"
	"seoforge/internal/limiter"
	"seoforge/internal/retry"
	"seoforge/internal/services"
)

// Factory builds an undecorated backend.
type Factory func(ctx context.Context) (Provider, error)

// Registry resolves provider names to one decorated instance each. It is
// built once at startup and passed to consumers.
type Registry struct {
	defaultName string
	policy      retry.Policy
	limiter     *limiter.Limiter
	logger      *slog.Logger

	mu        sync.Mutex
	factories map[string]Factory
	providers map[string]Provider
}

// NewRegistry registers a factory for every built-in backend. All providers
// share lim, so the LLM concurrency cap is global.
func NewRegistry(cfg config.LLM, policy retry.Policy, lim *limiter.Limiter, logger *slog.Logger) *Registry {
	timeout := cfg.Timeout()
	r := &Registry{
		defaultName: strings.ToLower(strings.TrimSpace(cfg.DefaultProvider)),
		policy:      policy,
		limiter:     lim,
		logger:      logger,
		factories:   map[string]Factory{},
		providers:   map[string]Provider{},
	}
	r.factories[config.ProviderOpenAI] = func(context.Context) (Provider, error) {
		if err := requireKey(config.ProviderOpenAI, cfg.OpenAI); err != nil {
			return nil, err
		}
		return NewOpenAI(cfg.OpenAI, timeout), nil
	}
	r.factories[config.ProviderOpenRouter] = func(context.Context) (Provider, error) {
		if err := requireKey(config.ProviderOpenRouter, cfg.OpenRouter); err != nil {
			return nil, err
		}
		return NewOpenRouter(cfg.OpenRouter, cfg.Referer, cfg.Title, timeout), nil
	}
	r.factories[config.ProviderAnthropic] = func(context.Context) (Provider, error) {
		if err := requireKey(config.ProviderAnthropic, cfg.Anthropic); err != nil {
			return nil, err
		}
		return NewAnthropic(cfg.Anthropic, timeout), nil
	}
	r.factories[config.ProviderGemini] = func(ctx context.Context) (Provider, error) {
		return NewGemini(ctx, cfg.Gemini, timeout)
	}
	r.factories[config.ProviderMock] = func(context.Context) (Provider, error) {
		return NewOffline(), nil
	}
	return r
}

// Register replaces the factory for name and drops any cached instance.
func (r *Registry) Register(name string, factory Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.providers, name)
}

// DefaultName returns the provider used for an empty name.
func (r *Registry) DefaultName() string { return r.defaultName }

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the singleton for name, building it on first use. An empty
// name resolves to the configured default.
func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.defaultName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, services.Validation("llm", "unknown provider "+strconv.Quote(name))
	}
	backend, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	p := NewService(backend, r.policy, r.limiter, r.logger)
	r.providers[name] = p
	return p, nil
}

// Default is Get with the configured default provider.
func (r *Registry) Default(ctx context.Context) (Provider, error) {
	return r.Get(ctx, "")
}

func requireKey(name string, cfg config.LLMProvider) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, name, "", "api key not configured", nil)
	}
	return nil
}
