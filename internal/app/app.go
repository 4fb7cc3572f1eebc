// Package app assembles the long-lived services behind the CLI: persistent
// store, caches, provider clients, research, the workflow engine and the
// batch runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"seoforge/internal/article"
	"seoforge/internal/batch"
	"seoforge/internal/cache"
	"seoforge/internal/config"
	"seoforge/internal/limiter"
	"seoforge/internal/logging"
	"seoforge/internal/notifications"
	"seoforge/internal/research"
	"seoforge/internal/retry"
	"seoforge/internal/services/llm"
	"seoforge/internal/services/scrape"
	"seoforge/internal/services/search"
	"seoforge/internal/store"
	"seoforge/internal/telemetry"
	"seoforge/internal/workflow"
)

// App owns every service built from one config.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store       *store.Store
	SearchCache *cache.Cache[search.Response]
	PageCache   *cache.Cache[scrape.Page]
	Search      *search.Client
	Scrape      *scrape.Client
	LLM         *llm.Registry
	Research    *research.Orchestrator
	Engine      *workflow.Engine
	Batch       *batch.Runner
	Notify      notifications.Service

	shutdownTelemetry telemetry.ShutdownFunc
}

// Option customizes construction.
type Option func(*options)

type options struct {
	providers map[string]llm.Factory
}

// WithProvider registers an extra LLM backend factory, replacing a built-in
// one of the same name.
func WithProvider(name string, factory llm.Factory) Option {
	return func(o *options) {
		if o.providers == nil {
			o.providers = map[string]llm.Factory{}
		}
		o.providers[name] = factory
	}
}

// New opens the store and wires the services. Workflows left mid-stage by a
// previous process are marked failed before the engine accepts new work.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logging.NewComponentLogger(logger, "app")

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logging.WarnWithContext(log, "telemetry setup failed", "telemetry_setup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check telemetry.otlp_endpoint"),
			logging.String(logging.FieldImpact, "traces will not be exported"),
		)
	}

	st, err := store.Open(cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}

	if n, err := st.Workflows().ResetStuck(ctx); err != nil {
		logging.WarnWithContext(log, "failed to reset interrupted workflows", "workflow_reset_failed", logging.Error(err))
	} else if n > 0 {
		log.Info("marked interrupted workflows failed",
			logging.String(logging.FieldEventType, "workflow_reset"),
			logging.Int("count", n),
		)
	}

	a := &App{
		Config:            cfg,
		Logger:            logger,
		Store:             st,
		shutdownTelemetry: shutdown,
	}
	a.SearchCache, a.PageCache = buildCaches(cfg, st, logger)

	policy := retry.FromConfig(cfg.Retry, logger)
	scrapeLimiter := limiter.New("scrape", cfg.Concurrency.Scrape)
	llmLimiter := limiter.New("llm", cfg.Concurrency.LLM)

	a.Search = search.NewClient(search.NewSerper(cfg.Search), a.SearchCache, policy,
		search.WithDefaults(cfg.Search.DefaultGeo, cfg.Search.DefaultNumResults),
		search.WithLogger(logger),
	)

	scrapeOpts := []scrape.Option{
		scrape.WithMaxChars(cfg.Scrape.MaxContentChars),
		scrape.WithLogger(logger),
	}
	if cfg.Scrape.Indexing {
		scrapeOpts = append(scrapeOpts, scrape.WithIndexer(st.Index()))
	}
	a.Scrape = scrape.NewClient(newFetcher(cfg.Scrape), a.PageCache, scrapeLimiter, policy, scrapeOpts...)

	a.LLM = llm.NewRegistry(cfg.LLM, policy, llmLimiter, logger)
	for name, factory := range o.providers {
		a.LLM.Register(name, factory)
	}

	a.Research = research.NewOrchestrator(a.Search, a.Scrape, st.Research(), logger)

	a.Notify = notifications.NewService(cfg)
	notifier := notifications.NewNotifier(a.Notify, cfg.Notifications, logger)

	stages := workflow.NewStages(a.Research, func(ctx context.Context, provider string) (workflow.Writer, error) {
		w, err := a.writer(ctx, provider)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	a.Engine = workflow.NewEngine(st.Workflows(), notifier, stages,
		workflow.WithLogger(logger),
		workflow.WithDefaults(workflow.Defaults{
			Geo:        cfg.Search.DefaultGeo,
			Language:   cfg.Workflow.DefaultLanguage,
			Tone:       cfg.Workflow.DefaultTone,
			Size:       cfg.Workflow.DefaultSize,
			NumResults: cfg.Search.DefaultNumResults,
			Provider:   cfg.LLM.DefaultProvider,
		}),
	)

	pages := st.Pages()
	a.Batch = batch.NewRunner(pages, pages, a.generator(),
		batch.WithLockDir(cfg.LockDir()),
		batch.WithNotifier(notifier),
		batch.WithRunnerLogger(logger),
	)
	return a, nil
}

func buildCaches(cfg *config.Config, st *store.Store, logger *slog.Logger) (*cache.Cache[search.Response], *cache.Cache[scrape.Page]) {
	if !cfg.Cache.Enabled {
		return cache.Disabled[search.Response]("search"), cache.Disabled[scrape.Page]("pages")
	}
	var backend cache.Backend
	switch cfg.Cache.Backend {
	case "sqlite":
		backend = st.Cache()
	default:
		backend = cache.NewMemoryBackend()
	}
	ttl := cfg.Cache.TTL()
	return cache.New[search.Response]("search", backend, ttl, cache.WithPrefix(cache.SearchPrefix), cache.WithLogger(logger)),
		cache.New[scrape.Page]("pages", backend, ttl, cache.WithPrefix(cache.PagePrefix), cache.WithLogger(logger))
}

func newFetcher(cfg config.Scrape) scrape.Fetcher {
	if cfg.Provider == "direct" {
		return scrape.NewDirect(cfg)
	}
	return scrape.NewFirecrawl(cfg)
}

func (a *App) writer(ctx context.Context, provider string) (*article.Writer, error) {
	p, err := a.LLM.Get(ctx, provider)
	if err != nil {
		return nil, err
	}
	return article.NewWriter(p, a.Logger), nil
}

func (a *App) generator() batch.Generator {
	if a.Config.Workflow.Generator == "quick" {
		return batch.QuickGenerator{
			Research: a.Research,
			Writers: func(ctx context.Context, provider string) (batch.QuickWriter, error) {
				w, err := a.writer(ctx, provider)
				if err != nil {
					return nil, err
				}
				return w, nil
			},
			Provider:   a.Config.LLM.DefaultProvider,
			NumResults: a.Config.Search.DefaultNumResults,
		}
	}
	return batch.WorkflowGenerator{
		Engine: a.Engine,
		Base:   workflow.Options{Provider: a.Config.LLM.DefaultProvider},
	}
}

// Close waits for background work to settle, flushes traces and closes the
// store. Batches still running when ctx expires are abandoned.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Batch.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown batches: %w", err))
	}
	a.Engine.Wait()
	a.Research.Wait()
	a.Scrape.WaitIndexing()
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
