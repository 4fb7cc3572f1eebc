package preflight

import (
	"context"
	"strings"

	"seoforge/internal/config"
	"seoforge/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ProviderSource resolves the configured default LLM provider.
type ProviderSource interface {
	Default(ctx context.Context) (llm.Provider, error)
}

// RunAll executes all applicable preflight checks for the given config.
// The LLM round trip is skipped when providers is nil or the default
// provider has no credentials.
func RunAll(ctx context.Context, cfg *config.Config, providers ProviderSource) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	missing := cfg.MissingCredentials()
	results = append(results, CheckCredentials(missing))

	if providers != nil && !llmKeyMissing(missing) {
		results = append(results, CheckLLMSource(ctx, providers))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func llmKeyMissing(missing []string) bool {
	for _, key := range missing {
		if strings.HasPrefix(key, "llm.") {
			return true
		}
	}
	return false
}
