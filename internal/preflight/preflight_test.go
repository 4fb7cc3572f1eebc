package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seoforge/internal/config"
	"seoforge/internal/retry"
	"seoforge/internal/services"
	"seoforge/internal/services/llm"
	"seoforge/internal/stage"
)

type staticSource struct {
	provider llm.Provider
	err      error
}

func (s staticSource) Default(context.Context) (llm.Provider, error) { return s.provider, s.err }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }
func (fakePinger) Path() string                 { return "/tmp/seoforge.db" }

func readyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Search.APIKey = "serper"
	cfg.Scrape.Provider = "direct"
	cfg.LLM.DefaultProvider = config.ProviderMock
	return &cfg
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	good := CheckEndpoint(context.Background(), "Search", srv.URL, http.Header{"X-API-KEY": {"good-key"}})
	if !good.Passed {
		t.Fatalf("expected pass, got: %s", good.Detail)
	}
	bad := CheckEndpoint(context.Background(), "Search", srv.URL, http.Header{"X-API-KEY": {"bad"}})
	if bad.Passed || !strings.Contains(bad.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", bad)
	}
	if missing := CheckEndpoint(context.Background(), "Search", " ", nil); missing.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckLLM(t *testing.T) {
	ok := CheckLLM(context.Background(), "LLM", llm.NewMock("OK"))
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}

	failing := llm.NewMock().Fail(services.Wrap(services.ErrLLM, "openai", "complete", "invalid api key", errors.New("401")))
	res := CheckLLM(context.Background(), "LLM", failing)
	if res.Passed || !strings.Contains(res.Detail, "invalid api key") {
		t.Fatalf("expected llm failure detail, got %+v", res)
	}
}

func TestCheckLLMUnwrapsRetryingService(t *testing.T) {
	backend := llm.NewMock("OK")
	svc := llm.NewService(backend, retry.Policy{MaxRetries: 3}, nil, nil)
	if res := CheckLLM(context.Background(), "LLM", svc); !res.Passed {
		t.Fatalf("expected pass, got %s", res.Detail)
	}
	if got := len(backend.Calls()); got != 1 {
		t.Fatalf("expected one backend call, got %d", got)
	}
}

func TestCheckDatabase(t *testing.T) {
	if res := CheckDatabase(context.Background(), fakePinger{}); !res.Passed {
		t.Fatalf("expected pass, got %s", res.Detail)
	}
	if res := CheckDatabase(context.Background(), fakePinger{err: errors.New("locked")}); res.Passed {
		t.Fatal("expected failure when ping fails")
	}
	if res := CheckDatabase(context.Background(), nil); res.Passed {
		t.Fatal("expected failure for nil store")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := readyConfig(t)
	results := RunAll(context.Background(), cfg, staticSource{provider: llm.NewMock("OK")})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	if !Passed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
}

func TestRunAll_SkipsLLMWhenKeyMissing(t *testing.T) {
	cfg := readyConfig(t)
	cfg.LLM.DefaultProvider = config.ProviderOpenAI
	cfg.LLM.OpenAI.APIKey = ""

	results := RunAll(context.Background(), cfg, staticSource{err: errors.New("should not be called")})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	creds := results[2]
	if creds.Passed || !strings.Contains(creds.Detail, "llm.openai.api_key") {
		t.Fatalf("unexpected credentials result %+v", creds)
	}
	if Passed(results) {
		t.Fatal("expected overall failure")
	}
}

func TestCheckStages(t *testing.T) {
	results := CheckStages([]stage.Health{
		stage.Healthy("research"),
		stage.Unhealthy("write", "no api key"),
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Name != "Stage research" || results[0].Detail != "ready" {
		t.Fatalf("unexpected healthy result %+v", results[0])
	}
	if results[1].Passed || results[1].Detail != "no api key" {
		t.Fatalf("unexpected unhealthy result %+v", results[1])
	}
}
