package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"seoforge/internal/app"
	"seoforge/internal/config"
	"seoforge/internal/services/llm"
	"seoforge/internal/testsupport"
)

const outlineJSON = `{"title":"best running shoes","meta_description":"Our picks.","sections":[{"heading":"how we tested"},{"heading":"top picks"}]}`

func scriptedLLM(_ context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	if opts.JSON {
		return outlineJSON, nil
	}
	if len(messages) > 0 && strings.Contains(messages[0].Content, "editor") {
		return messages[len(messages)-1].Content, nil
	}
	return "Rotate two pairs of trainers and replace them every few hundred miles.", nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	pages := testsupport.HTMLServer(t, map[string]int{"/a": 400, "/b": 350})
	serp := testsupport.SERPServer(t, pages.URL+"/a", pages.URL+"/b")
	cfg := testsupport.NewConfig(t,
		testsupport.WithSearchURL(serp.URL),
		testsupport.WithDirectScrape(),
		testsupport.WithCacheBackend("sqlite"),
	)

	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// run executes the root command against the environment's config and
// returns stdout.
func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	scripted := app.WithProvider(config.ProviderMock, func(context.Context) (llm.Provider, error) {
		return llm.NewMockResponder(scriptedLLM), nil
	})
	cmd := newRootCommand(scripted)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func decodeJSON(t *testing.T, raw string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		t.Fatalf("decode json %q: %v", raw, err)
	}
}

func (e *cliTestEnv) writePlan(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "plan.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}
