package services_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"seoforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "scrape", "fetch", "failed", base)
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scrape", "fetch", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := services.RateLimited("serper", 3*time.Second, errors.New("slow down"))
	if !errors.Is(err, services.ErrRateLimit) {
		t.Fatalf("expected rate limit marker, got %v", err)
	}
	wait, ok := services.RetryAfter(err)
	if !ok || wait != 3*time.Second {
		t.Fatalf("unexpected retry-after: %v %v", wait, ok)
	}
	if !strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		t.Fatalf("expected rate limit text in %q", err.Error())
	}
	if services.ServiceName(err) != "serper" {
		t.Fatalf("unexpected service name %q", services.ServiceName(err))
	}
}

func TestLLMErrorNamesProvider(t *testing.T) {
	err := services.LLM("anthropic", "response is not valid JSON", errors.New("unexpected token"))
	if !errors.Is(err, services.ErrLLM) {
		t.Fatalf("expected llm marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "anthropic") {
		t.Fatalf("expected provider in %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{services.Validation("search", "keyword is required"), "validation"},
		{services.ExternalService("firecrawl", "scrape", "bad gateway", 502, nil), "external_service"},
		{services.RateLimited("openai", 0, nil), "rate_limit"},
		{services.LLM("gemini", "empty", nil), "llm"},
		{errors.New("plain"), "internal"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestDetailsCarriesHint(t *testing.T) {
	details := services.Details(services.ExternalService("serper", "search", "unavailable", 503, nil))
	if details.Kind != "external_service" || details.Service != "serper" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Hint == "" || !strings.Contains(details.Message, "503") {
		t.Fatalf("unexpected details: %+v", details)
	}
}
