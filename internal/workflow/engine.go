package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"seoforge/internal/logging"
	"seoforge/internal/services"
	"seoforge/internal/stage"
)

// DefaultPollInterval is used by Poll when the caller passes no interval.
const DefaultPollInterval = 2 * time.Second

// ErrFailed marks the error Poll returns for a workflow that ended failed.
var ErrFailed = errors.New("workflow failed")

// Defaults fill options a request leaves empty.
type Defaults struct {
	Geo        string
	Language   string
	Tone       string
	Size       string
	NumResults int
	Provider   string
}

type pipelineStage struct {
	name             string
	processingStatus Status
	progress         int
	handler          stage.Handler[*State]
}

// Engine drives workflows through the research, outline, write, and edit
// stages, persisting and publishing a snapshot after every transition.
type Engine struct {
	store     Store
	publisher Publisher
	stages    []pipelineStage
	defaults  Defaults
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewComponentLogger(logger, "workflow") }
}

// WithDefaults sets the values applied to empty request options.
func WithDefaults(d Defaults) Option {
	return func(e *Engine) { e.defaults = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine. A nil store keeps states in memory and a nil
// publisher discards snapshots.
func NewEngine(store Store, publisher Publisher, stages StageSet, opts ...Option) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	if publisher == nil {
		publisher = Publishers()
	}
	e := &Engine{
		store:     store,
		publisher: publisher,
		logger:    logging.NewComponentLogger(nil, "workflow"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	e.stages = []pipelineStage{
		{name: "research", processingStatus: StatusResearching, progress: 10, handler: stages.Research},
		{name: "outline", processingStatus: StatusOutlining, progress: 30, handler: stages.Outline},
		{name: "write", processingStatus: StatusWriting, progress: 50, handler: stages.Write},
	}
	if stages.Edit != nil {
		e.stages = append(e.stages, pipelineStage{name: "edit", processingStatus: StatusEditing, progress: 85, handler: stages.Edit})
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the backing store.
func (e *Engine) Store() Store { return e.store }

// Start persists a pending workflow and runs it in the background. The run is
// not tied to ctx's cancellation.
func (e *Engine) Start(ctx context.Context, req Request) (string, error) {
	st, err := e.create(ctx, req)
	if err != nil {
		return "", err
	}
	bg := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.run(bg, st)
	}()
	return st.ID, nil
}

// Run executes a workflow synchronously and returns its terminal state. The
// error is the failing stage's error; the state is failed in that case.
func (e *Engine) Run(ctx context.Context, req Request) (State, error) {
	st, err := e.create(ctx, req)
	if err != nil {
		return State{}, err
	}
	err = e.run(ctx, st)
	return st.Clone(), err
}

// Get returns the latest persisted snapshot.
func (e *Engine) Get(ctx context.Context, id string) (State, error) {
	return e.store.Get(ctx, strings.TrimSpace(id))
}

// List returns recent workflows, newest first.
func (e *Engine) List(ctx context.Context, limit int) ([]State, error) {
	return e.store.List(ctx, limit)
}

// Poll reads the workflow every interval until it is terminal. A completed
// workflow is returned as is; a failed one returns its state with an error
// wrapping ErrFailed and carrying the recorded message.
func (e *Engine) Poll(ctx context.Context, id string, interval time.Duration) (State, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := e.Get(ctx, id)
		if err != nil {
			return State{}, err
		}
		switch st.Status {
		case StatusCompleted:
			return st, nil
		case StatusFailed:
			return st, fmt.Errorf("%w: %s", ErrFailed, st.Error)
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until every workflow launched with Start has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Health reports readiness for each configured stage.
func (e *Engine) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(e.stages))
	for _, s := range e.stages {
		if s.handler == nil {
			out = append(out, stage.Unhealthy(s.name, "handler not configured"))
			continue
		}
		out = append(out, s.handler.HealthCheck(ctx))
	}
	return out
}

func (e *Engine) create(ctx context.Context, req Request) (*State, error) {
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return nil, services.Validation("workflow", "keyword is required")
	}
	opts := e.applyDefaults(req.Options)
	geo := strings.ToLower(strings.TrimSpace(req.Geo))
	if geo == "" {
		geo = e.defaults.Geo
	}
	now := e.now().UTC()
	st := &State{
		ID:        e.newID(),
		Status:    StatusPending,
		Keyword:   keyword,
		Geo:       geo,
		Options:   opts,
		ProjectID: req.ProjectID,
		PageID:    req.PageID,
		Stage:     StatusPending.Label(),
		StartedAt: now,
	}
	if _, err := st.Brief().Validate(); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) applyDefaults(opts Options) Options {
	if opts.Language == "" {
		opts.Language = e.defaults.Language
	}
	if opts.Tone == "" {
		opts.Tone = e.defaults.Tone
	}
	if opts.Size == "" {
		opts.Size = e.defaults.Size
	}
	if opts.NumResults <= 0 {
		opts.NumResults = e.defaults.NumResults
	}
	if opts.Provider == "" {
		opts.Provider = e.defaults.Provider
	}
	return opts
}
