package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"seoforge/internal/article"
	"seoforge/internal/research"
	"seoforge/internal/services"
	"seoforge/internal/stage"
	"seoforge/internal/workflow"
)

type recorder struct {
	mu       sync.Mutex
	statuses []workflow.Status
	last     workflow.State
}

func (r *recorder) Publish(_ context.Context, st workflow.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st.Status)
	r.last = st
}

func (r *recorder) seen() []workflow.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]workflow.Status(nil), r.statuses...)
}

func step(name string, calls *[]string, fn func(*workflow.State) error) stage.Handler[*workflow.State] {
	return stage.Func[*workflow.State]{StageName: name, Run: func(_ context.Context, st *workflow.State) error {
		*calls = append(*calls, name)
		if fn != nil {
			return fn(st)
		}
		return nil
	}}
}

func stubStages(calls *[]string) workflow.StageSet {
	return workflow.StageSet{
		Research: step("research", calls, func(st *workflow.State) error { st.ResearchID = "r-1"; return nil }),
		Outline: step("outline", calls, func(st *workflow.State) error {
			st.Outline = &article.Outline{Title: "T", Sections: []article.Section{{Heading: "A", Level: 2}}}
			return nil
		}),
		Write: step("write", calls, func(st *workflow.State) error {
			st.Article = &article.Article{Title: "T", Markdown: "# T\n\nbody words", WordCount: 3}
			return nil
		}),
		Edit: step("edit", calls, nil),
	}
}

func TestRunPublishesEveryTransitionInOrder(t *testing.T) {
	var calls []string
	rec := &recorder{}
	engine := workflow.NewEngine(nil, rec, stubStages(&calls))

	st, err := engine.Run(context.Background(), workflow.Request{Keyword: "best running shoes", Geo: "US"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []workflow.Status{
		workflow.StatusPending,
		workflow.StatusResearching,
		workflow.StatusOutlining,
		workflow.StatusWriting,
		workflow.StatusEditing,
		workflow.StatusCompleted,
	}
	if diff := cmp.Diff(want, rec.seen()); diff != "" {
		t.Fatalf("published statuses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"research", "outline", "write", "edit"}, calls); diff != "" {
		t.Fatalf("stage order mismatch (-want +got):\n%s", diff)
	}
	if st.Status != workflow.StatusCompleted || st.Progress != 100 || st.CompletedAt == nil {
		t.Fatalf("unexpected final state %+v", st)
	}
	if st.Geo != "us" || st.ResearchID != "r-1" || st.Article == nil {
		t.Fatalf("expected artifacts on final state, got %+v", st)
	}

	stored, err := engine.Get(context.Background(), st.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != workflow.StatusCompleted {
		t.Fatalf("expected stored state completed, got %s", stored.Status)
	}
}

func TestStatusNeverMovesBackward(t *testing.T) {
	var calls []string
	rec := &recorder{}
	engine := workflow.NewEngine(nil, rec, stubStages(&calls))
	for range 3 {
		if _, err := engine.Run(context.Background(), workflow.Request{Keyword: "k"}); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	}
	statuses := rec.seen()
	for i := 1; i < len(statuses); i++ {
		prev, cur := statuses[i-1], statuses[i]
		if prev.IsTerminal() {
			if cur != workflow.StatusPending {
				t.Fatalf("expected a new run after terminal status, got %s -> %s", prev, cur)
			}
			continue
		}
		if cur.Rank() <= prev.Rank() {
			t.Fatalf("status moved backward: %s -> %s", prev, cur)
		}
	}
}

func TestStageFailureStopsPipeline(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	stages.Outline = step("outline", &calls, func(*workflow.State) error {
		return services.LLM("openai", "response is not valid JSON", errors.New("unexpected end of input"))
	})
	rec := &recorder{}
	engine := workflow.NewEngine(nil, rec, stages)

	st, err := engine.Run(context.Background(), workflow.Request{Keyword: "k"})
	if !errors.Is(err, services.ErrLLM) {
		t.Fatalf("expected llm error, got %v", err)
	}
	if diff := cmp.Diff([]string{"research", "outline"}, calls); diff != "" {
		t.Fatalf("later stages ran after failure (-want +got):\n%s", diff)
	}
	if st.Status != workflow.StatusFailed || st.CompletedAt == nil {
		t.Fatalf("expected failed terminal state, got %+v", st)
	}
	if !strings.Contains(st.Error, "openai") || st.ErrorKind != "llm" {
		t.Fatalf("expected classified failure message, got %q (%s)", st.Error, st.ErrorKind)
	}
	got := rec.seen()
	if got[len(got)-1] != workflow.StatusFailed || got[len(got)-2] != workflow.StatusOutlining {
		t.Fatalf("expected outlining -> failed, got %v", got)
	}

	_, pollErr := engine.Poll(context.Background(), st.ID, time.Millisecond)
	if !errors.Is(pollErr, workflow.ErrFailed) || !strings.Contains(pollErr.Error(), "openai") {
		t.Fatalf("expected Poll to surface recorded error, got %v", pollErr)
	}
}

func TestStagePanicBecomesFailure(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	stages.Write = step("write", &calls, func(*workflow.State) error { panic("nil outline") })
	engine := workflow.NewEngine(nil, nil, stages)

	st, err := engine.Run(context.Background(), workflow.Request{Keyword: "k"})
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if st.Status != workflow.StatusFailed || !strings.Contains(st.Error, "nil outline") {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestSkipEditGoesStraightToCompleted(t *testing.T) {
	var calls []string
	rec := &recorder{}
	engine := workflow.NewEngine(nil, rec, stubStages(&calls))
	_, err := engine.Run(context.Background(), workflow.Request{Keyword: "k", Options: workflow.Options{SkipEdit: true}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for _, s := range rec.seen() {
		if s == workflow.StatusEditing {
			t.Fatal("editing status published despite SkipEdit")
		}
	}
	if calls[len(calls)-1] != "write" {
		t.Fatalf("edit stage should not run, calls=%v", calls)
	}
}

func TestStartIsDetachedFromCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	var calls []string
	stages := stubStages(&calls)
	stages.Research = stage.Func[*workflow.State]{StageName: "research", Run: func(ctx context.Context, st *workflow.State) error {
		<-release
		if err := ctx.Err(); err != nil {
			return err
		}
		st.ResearchID = "r-1"
		return nil
	}}
	engine := workflow.NewEngine(nil, nil, stages)

	ctx, cancel := context.WithCancel(context.Background())
	id, err := engine.Start(ctx, workflow.Request{Keyword: "k"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	cancel()
	close(release)

	st, err := engine.Poll(context.Background(), id, time.Millisecond)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if st.Status != workflow.StatusCompleted {
		t.Fatalf("expected completed, got %s", st.Status)
	}
	engine.Wait()
}

func TestPollStopsOnContextCancel(t *testing.T) {
	block := make(chan struct{})
	var calls []string
	stages := stubStages(&calls)
	stages.Research = stage.Func[*workflow.State]{StageName: "research", Run: func(context.Context, *workflow.State) error {
		<-block
		return errors.New("stopped")
	}}
	engine := workflow.NewEngine(nil, nil, stages)
	id, err := engine.Start(context.Background(), workflow.Request{Keyword: "k"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := engine.Poll(ctx, id, 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if st.Status != workflow.StatusResearching {
		t.Fatalf("expected in-flight status, got %s", st.Status)
	}
	close(block)
	engine.Wait()
}

func TestRequestValidation(t *testing.T) {
	var calls []string
	engine := workflow.NewEngine(nil, nil, stubStages(&calls))
	tests := []workflow.Request{
		{Keyword: "  "},
		{Keyword: "k", Options: workflow.Options{Size: "huge"}},
		{Keyword: "k", Options: workflow.Options{Language: "not a tag"}},
	}
	for _, req := range tests {
		if _, err := engine.Start(context.Background(), req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
	if len(calls) != 0 {
		t.Fatalf("no stage should run for invalid requests, got %v", calls)
	}
	if _, err := engine.Get(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDefaultsFillEmptyOptions(t *testing.T) {
	var calls []string
	engine := workflow.NewEngine(nil, nil, stubStages(&calls), workflow.WithDefaults(workflow.Defaults{
		Geo: "gb", Language: "en", Tone: "friendly", Size: "short", NumResults: 7,
	}))
	st, err := engine.Run(context.Background(), workflow.Request{Keyword: "k", Options: workflow.Options{Tone: "formal"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := workflow.Options{Language: "en", Tone: "formal", Size: "short", NumResults: 7}
	if diff := cmp.Diff(want, st.Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if st.Geo != "gb" {
		t.Fatalf("expected default geo, got %q", st.Geo)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to workflow.Status
		want     bool
	}{
		{workflow.StatusPending, workflow.StatusResearching, true},
		{workflow.StatusWriting, workflow.StatusCompleted, true},
		{workflow.StatusWriting, workflow.StatusOutlining, false},
		{workflow.StatusWriting, workflow.StatusWriting, false},
		{workflow.StatusEditing, workflow.StatusFailed, true},
		{workflow.StatusPending, workflow.StatusFailed, true},
		{workflow.StatusCompleted, workflow.StatusFailed, false},
		{workflow.StatusFailed, workflow.StatusResearching, false},
		{workflow.Status("bogus"), workflow.StatusWriting, false},
	}
	for _, tt := range tests {
		if got := workflow.CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

type fakeResearcher struct {
	repo *research.MemoryRepository
}

func (f *fakeResearcher) Conduct(ctx context.Context, req research.Request) (research.Result, error) {
	res := research.Result{ID: "res-" + req.Keyword, Keyword: req.Keyword, Geo: "us", CreatedAt: time.Now()}
	return res, f.repo.Put(ctx, res)
}

func (f *fakeResearcher) Get(ctx context.Context, id string) (research.Result, error) {
	return f.repo.Get(ctx, id)
}

type fakeWriter struct{ provider string }

func (w fakeWriter) Outline(_ context.Context, b article.Brief, _ research.Result) (article.Outline, error) {
	return article.Outline{Title: "Guide to " + b.Keyword, Sections: []article.Section{{Heading: "Intro", Level: 2}}}, nil
}

func (w fakeWriter) Draft(_ context.Context, _ article.Brief, o article.Outline, _ research.Result) (article.Article, error) {
	return article.Article{Title: o.Title, Markdown: "# " + o.Title + "\n\ndraft", WordCount: 4}, nil
}

func (w fakeWriter) Edit(_ context.Context, _ article.Brief, draft article.Article) (article.Article, error) {
	draft.Edited = true
	draft.Title += " (" + w.provider + ")"
	return draft, nil
}

func TestStandardStagesCarryArtifacts(t *testing.T) {
	researcher := &fakeResearcher{repo: research.NewMemoryRepository()}
	var providers []string
	var mu sync.Mutex
	writers := func(_ context.Context, provider string) (workflow.Writer, error) {
		mu.Lock()
		providers = append(providers, provider)
		mu.Unlock()
		if provider == "broken" {
			return nil, services.Wrap(services.ErrConfiguration, "llm", "", "provider broken has no api key", nil)
		}
		return fakeWriter{provider: provider}, nil
	}
	engine := workflow.NewEngine(nil, nil, workflow.NewStages(researcher, writers))

	st, err := engine.Run(context.Background(), workflow.Request{Keyword: "trail shoes", Options: workflow.Options{Provider: "mock"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if st.ResearchID != "res-trail shoes" || st.Outline == nil || st.Article == nil || !st.Article.Edited {
		t.Fatalf("expected research, outline, and edited article, got %+v", st)
	}
	if st.Article.Title != "Guide to trail shoes (mock)" {
		t.Fatalf("unexpected title %q", st.Article.Title)
	}

	failed, err := engine.Run(context.Background(), workflow.Request{Keyword: "k", Options: workflow.Options{Provider: "broken"}})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if failed.Status != workflow.StatusFailed || failed.ResearchID == "" || failed.Outline != nil {
		t.Fatalf("expected failure after research, got %+v", failed)
	}

	health := engine.Health(context.Background())
	if len(health) != 4 || !health[0].Ready || !health[1].Ready {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := workflow.NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Put(context.Background(), workflow.State{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	got, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}

type rejectCompletedStore struct {
	workflow.Store
}

func (s rejectCompletedStore) Put(ctx context.Context, st workflow.State) error {
	if st.Status == workflow.StatusCompleted {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, st)
}

func TestUnsavedCompletionEndsFailed(t *testing.T) {
	var calls []string
	rec := &recorder{}
	store := rejectCompletedStore{Store: workflow.NewMemoryStore()}
	engine := workflow.NewEngine(store, rec, stubStages(&calls))

	id, err := engine.Start(context.Background(), workflow.Request{Keyword: "k"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := engine.Poll(ctx, id, time.Millisecond)
	if !errors.Is(err, workflow.ErrFailed) {
		t.Fatalf("expected failed workflow error, got %v", err)
	}
	engine.Wait()
	if st.Status != workflow.StatusFailed || !strings.Contains(st.Error, "disk full") {
		t.Fatalf("expected failed state naming the store error, got %+v", st)
	}
	if st.Article == nil {
		t.Fatal("expected the generated article to be kept on the failed state")
	}
	for _, status := range rec.seen() {
		if status == workflow.StatusCompleted {
			t.Fatalf("unsaved completion was published: %v", rec.seen())
		}
	}
	if rec.last.Status != workflow.StatusFailed {
		t.Fatalf("expected last published status failed, got %s", rec.last.Status)
	}
}
