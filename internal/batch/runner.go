package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"seoforge/internal/logging"
	"seoforge/internal/services"
)

// ErrBatchRunning is returned by Start while the project already has an
// active batch, in this process or another one sharing the lock directory.
var ErrBatchRunning = fmt.Errorf("%w: batch already running", services.ErrConflict)

// Options select and configure the pages of one batch.
type Options struct {
	// PageIDs restricts the batch to these pages, still processed in list
	// order. Empty selects every pending or failed page.
	PageIDs  []string
	Settings Settings
}

// Notifier is told when a batch starts and finishes.
type Notifier interface {
	BatchStarted(ctx context.Context, status Status)
	BatchFinished(ctx context.Context, status Status)
}

type run struct {
	status Status
	pages  []Page
	token  context.Context
	cancel context.CancelFunc
	done   chan struct{}
	lock   *flock.Flock
}

// Runner drains content-plan pages one project at a time.
type Runner struct {
	pages     PageStore
	projects  ProjectStore
	generator Generator
	lockDir   string
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	runs map[string]*run
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLockDir holds a file lock per project in dir while a batch runs.
func WithLockDir(dir string) RunnerOption {
	return func(r *Runner) { r.lockDir = strings.TrimSpace(dir) }
}

// WithNotifier reports batch start and finish.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithRunnerLogger sets the base logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logging.NewComponentLogger(logger, "batch") }
}

// NewRunner builds a runner over the given stores and generator.
func NewRunner(pages PageStore, projects ProjectStore, generator Generator, opts ...RunnerOption) *Runner {
	r := &Runner{
		pages:     pages,
		projects:  projects,
		generator: generator,
		logger:    logging.NewComponentLogger(nil, "batch"),
		now:       time.Now,
		runs:      map[string]*run{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start selects the project's pages and generates them sequentially in the
// background. It fails with ErrBatchRunning when a batch is already active.
func (r *Runner) Start(ctx context.Context, projectID string, opts Options) (Status, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return Status{}, services.Validation("batch", "project id is required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return Status{}, err
	}

	r.mu.Lock()
	if prev, ok := r.runs[projectID]; ok && prev.status.Running {
		r.mu.Unlock()
		return prev.status, ErrBatchRunning
	}
	token, cancel := context.WithCancel(context.Background())
	current := &run{
		status: Status{ProjectID: projectID, Running: true, StartedAt: r.now().UTC()},
		token:  token,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.runs[projectID] = current
	r.mu.Unlock()

	abort := func(err error) (Status, error) {
		cancel()
		r.release(current)
		r.mu.Lock()
		if r.runs[projectID] == current {
			delete(r.runs, projectID)
		}
		r.mu.Unlock()
		close(current.done)
		return Status{ProjectID: projectID}, err
	}

	lock, err := r.acquire(projectID)
	if err != nil {
		return abort(err)
	}
	current.lock = lock

	project, err := r.projects.GetProject(ctx, projectID)
	if err != nil {
		return abort(err)
	}
	targets, err := r.selectPages(ctx, projectID, opts.PageIDs)
	if err != nil {
		return abort(err)
	}

	r.mu.Lock()
	current.pages = targets
	current.status.Total = len(targets)
	current.status.Stats = CountStats(targets)
	snapshot := current.status
	r.mu.Unlock()

	bg := services.WithProjectID(context.WithoutCancel(ctx), projectID)
	logging.WithContext(bg, r.logger).Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("pages", len(targets)),
	)
	if r.notifier != nil {
		r.notifier.BatchStarted(bg, snapshot)
	}
	go r.drain(bg, current, project.Defaults, opts.Settings)
	return snapshot, nil
}

// Status returns the project's current or most recent batch status. The
// boolean is false when no batch has run in this process.
func (r *Runner) Status(projectID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.runs[strings.TrimSpace(projectID)]
	if !ok {
		return Status{ProjectID: projectID}, false
	}
	return current.status, true
}

// Cancel asks the project's batch to stop before its next page. The page in
// flight is allowed to finish. It reports whether a running batch was found.
func (r *Runner) Cancel(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.runs[strings.TrimSpace(projectID)]
	if !ok || !current.status.Running {
		return false
	}
	current.status.CancelRequested = true
	current.cancel()
	return true
}

// Wait blocks until the project's batch finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context, projectID string) (Status, error) {
	r.mu.Lock()
	current, ok := r.runs[strings.TrimSpace(projectID)]
	r.mu.Unlock()
	if !ok {
		return Status{ProjectID: projectID}, nil
	}
	select {
	case <-current.done:
	case <-ctx.Done():
		return r.snapshot(current), ctx.Err()
	}
	return r.snapshot(current), nil
}

// Shutdown cancels every running batch and waits for them to stop.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	active := make([]*run, 0, len(r.runs))
	for _, current := range r.runs {
		if current.status.Running {
			current.status.CancelRequested = true
			current.cancel()
			active = append(active, current)
		}
	}
	r.mu.Unlock()
	for _, current := range active {
		select {
		case <-current.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) snapshot(current *run) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return current.status
}

func (r *Runner) selectPages(ctx context.Context, projectID string, ids []string) ([]Page, error) {
	all, err := r.pages.ListPages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	// A page left generating by a crashed run is retried; the project lock is
	// held so nothing else is working on it.
	for i := range all {
		if all[i].Status == StatusGenerating {
			all[i].Status = StatusPending
		}
	}
	if len(ids) == 0 {
		out := make([]Page, 0, len(all))
		for _, p := range all {
			if p.Status.Eligible() {
				out = append(out, p)
			}
		}
		return out, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	out := make([]Page, 0, len(wanted))
	for _, p := range all {
		if !wanted[p.ID] {
			continue
		}
		delete(wanted, p.ID)
		if p.Status.Eligible() || p.Status == StatusSkipped {
			out = append(out, p)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, strconv.Quote(id))
		}
		return nil, services.Validation("batch", "pages not in project: "+strings.Join(missing, ", "))
	}
	return out, nil
}

func (r *Runner) acquire(projectID string) (*flock.Flock, error) {
	if r.lockDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(r.lockDir, lockName(projectID)))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return nil, ErrBatchRunning
	}
	return lock, nil
}

func (r *Runner) release(current *run) {
	if current.lock == nil {
		return
	}
	if err := current.lock.Unlock(); err != nil {
		logging.WarnWithContext(r.logger, "failed to release batch lock", "batch_lock_release_failed",
			logging.String(logging.FieldProjectID, current.status.ProjectID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "another process may see the batch as running until exit"),
		)
	}
}

func lockName(projectID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, projectID)
	return "batch-" + safe + ".lock"
}

func (r *Runner) drain(ctx context.Context, current *run, projectDefaults, batchSettings Settings) {
	ctx, span := otel.Tracer("seoforge/batch").Start(ctx, "batch.run")
	logger := logging.WithContext(ctx, r.logger)
	halted := false
	defer func() {
		r.mu.Lock()
		current.status.Running = false
		current.status.CurrentPageID = ""
		current.status.FinishedAt = r.now().UTC()
		current.status.Cancelled = halted
		final := current.status
		r.mu.Unlock()
		r.release(current)
		current.cancel()
		span.SetAttributes(
			attribute.Int("batch.completed", final.Stats.Completed),
			attribute.Int("batch.failed", final.Stats.Failed),
			attribute.Bool("batch.cancelled", final.Cancelled),
		)
		span.End()
		logger.Info("batch finished",
			logging.String(logging.FieldEventType, "batch_complete"),
			logging.Int("completed", final.Stats.Completed),
			logging.Int("failed", final.Stats.Failed),
			logging.Int("pending", final.Stats.Pending),
			logging.Bool("cancelled", final.Cancelled),
			logging.Duration("duration", final.FinishedAt.Sub(final.StartedAt)),
		)
		if r.notifier != nil {
			r.notifier.BatchFinished(ctx, final)
		}
		close(current.done)
	}()

	for i := range current.pages {
		if current.pages[i].Status == StatusSkipped {
			continue
		}
		if current.token.Err() != nil {
			logger.Info("batch cancelled before page",
				logging.String(logging.FieldEventType, "batch_cancelled"),
				logging.String(logging.FieldPageID, current.pages[i].ID),
				logging.Int("index", i),
			)
			halted = true
			return
		}
		r.processPage(ctx, current, i, projectDefaults, batchSettings)
	}
}

func (r *Runner) processPage(ctx context.Context, current *run, index int, projectDefaults, batchSettings Settings) {
	page := current.pages[index]
	ctx = services.WithPageID(ctx, page.ID)
	logger := logging.WithContext(ctx, r.logger)
	start := r.now()

	page.Status = StatusGenerating
	page.Error = ""
	r.setPage(ctx, current, index, page, true)
	logger.Info("page generation started",
		logging.String(logging.FieldEventType, "page_start"),
		logging.String("keyword", page.Subject()),
		logging.Int("index", index),
	)

	settings := Layer(projectDefaults, batchSettings, page.Overrides)
	outcome, err := r.generate(ctx, page, settings)
	page.WorkflowID = outcome.WorkflowID
	if err != nil {
		details := services.Details(err)
		page.Status = StatusFailed
		page.Error = details.Message
		logging.WarnWithContext(logger, "page generation failed", "page_failed",
			logging.String(logging.FieldErrorKind, details.Kind),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.String(logging.FieldImpact, "page marked failed; batch continues"),
			logging.Error(err),
		)
	} else {
		page.Status = StatusCompleted
		page.ArticleID = outcome.ArticleID
		page.Article = outcome.Article
		words := 0
		if outcome.Article != nil {
			words = outcome.Article.WordCount
		}
		logger.Info("page generation completed",
			logging.String(logging.FieldEventType, "page_complete"),
			logging.Int("word_count", words),
			logging.Duration("duration", r.now().Sub(start)),
		)
	}
	r.setPage(ctx, current, index, page, false)
}

// generate isolates a page so a panicking generator only fails that page.
func (r *Runner) generate(ctx context.Context, page Page, settings Settings) (out Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("generator panicked: %v", rec)
		}
	}()
	if err := settings.Validate(); err != nil {
		return Outcome{}, err
	}
	if page.Subject() == "" {
		return Outcome{}, services.Validation("batch", "page has no keyword or title")
	}
	if r.generator == nil {
		return Outcome{}, errors.New("batch: no generator configured")
	}
	return r.generator.Generate(ctx, page, settings)
}

func (r *Runner) setPage(ctx context.Context, current *run, index int, page Page, starting bool) {
	page.UpdatedAt = r.now().UTC()
	r.mu.Lock()
	current.pages[index] = page
	current.status.Stats = CountStats(current.pages)
	if starting {
		current.status.CurrentIndex = index
		current.status.CurrentPageID = page.ID
	}
	r.mu.Unlock()
	if err := r.pages.UpdatePage(ctx, page); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to persist page status", "page_persist_failed",
			logging.String("status", string(page.Status)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stored page status may lag the batch"),
		)
	}
}
