package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"seoforge/internal/config"
	"seoforge/internal/limiter"
	"seoforge/internal/retry"
	"seoforge/internal/services"
	"seoforge/internal/services/llm"
)

type outline struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

const rawOutline = `{"title":"Best Running Shoes","sections":["Cushioning","Fit"]}`

func noSleep(context.Context, time.Duration) error { return nil }

func TestCompleteJSONFencedMatchesRaw(t *testing.T) {
	ctx := context.Background()
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "outline please"}}

	raw, err := llm.CompleteJSON[outline](ctx, llm.NewMock(rawOutline), msgs, llm.Options{})
	if err != nil {
		t.Fatalf("raw CompleteJSON returned error: %v", err)
	}
	for _, reply := range []string{
		"```json\n" + rawOutline + "\n```",
		"```\n" + rawOutline + "\n```",
		"Here is the outline:\n```json\n" + rawOutline + "\n```\nLet me know.",
	} {
		fenced, err := llm.CompleteJSON[outline](ctx, llm.NewMock(reply), msgs, llm.Options{})
		if err != nil {
			t.Fatalf("fenced CompleteJSON returned error for %q: %v", reply, err)
		}
		if diff := cmp.Diff(raw, fenced); diff != "" {
			t.Fatalf("fenced result differs (-raw +fenced):\n%s", diff)
		}
	}
}

func TestCompleteJSONInjectsInstructionOnlyWithoutNativeMode(t *testing.T) {
	ctx := context.Background()
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "outline please"}}

	plain := llm.NewMock(rawOutline)
	if _, err := llm.CompleteJSON[outline](ctx, plain, msgs, llm.Options{}); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	call := plain.Calls()[0]
	if !strings.HasSuffix(call.Messages[0].Content, llm.JSONInstruction) {
		t.Fatalf("expected instruction on final message, got %q", call.Messages[0].Content)
	}
	if !call.Options.JSON {
		t.Fatal("expected JSON option to be set")
	}
	if msgs[0].Content != "outline please" {
		t.Fatal("caller messages must not be mutated")
	}

	native := llm.NewMock(rawOutline)
	if _, err := llm.CompleteJSON[outline](ctx, native, msgs, llm.Options{Model: "gpt-4o-mini"}); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if got := native.Calls()[0].Messages[0].Content; got != "outline please" {
		t.Fatalf("expected no instruction for native JSON model, got %q", got)
	}
}

func TestCompleteJSONParseFailureNamesProvider(t *testing.T) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "outline"}}
	_, err := llm.CompleteJSON[outline](context.Background(), llm.NewMock("I cannot help with that."), msgs, llm.Options{})
	if !errors.Is(err, services.ErrLLM) {
		t.Fatalf("expected llm error, got %v", err)
	}
	if services.ServiceName(err) != config.ProviderMock {
		t.Fatalf("expected provider name in error, got %q", services.ServiceName(err))
	}
}

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		model string
		want  llm.Capabilities
	}{
		{"o1-preview", llm.Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
		{"o3-mini", llm.Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
		{"openai/o4-mini", llm.Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
		{"gpt-5-mini", llm.Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
		{"gpt-4o-mini", llm.Capabilities{StructuredOutput: true}},
		{"google/gemini-3-flash-preview", llm.Capabilities{StructuredOutput: true}},
		{"claude-sonnet-4-5", llm.Capabilities{}},
		{"llama-3", llm.Capabilities{}},
	}
	for _, tt := range tests {
		if got := llm.CapabilitiesFor(tt.model); got != tt.want {
			t.Fatalf("CapabilitiesFor(%q) = %+v, want %+v", tt.model, got, tt.want)
		}
	}
}

func chatServer(t *testing.T, bodies chan<- map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		_, _ = w.Write([]byte(`{"model":"x","choices":[{"message":{"content":"hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
}

func TestOpenAIDropsTemperatureForReasoningModels(t *testing.T) {
	bodies := make(chan map[string]any, 2)
	srv := chatServer(t, bodies)
	defer srv.Close()

	backend := llm.NewOpenAI(config.LLMProvider{APIKey: "sk-test", BaseURL: srv.URL, Model: "o3-mini"}, time.Second)
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	res, err := backend.Complete(context.Background(), msgs, llm.Options{Temperature: llm.Float(0.7), MaxTokens: 100})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if res.Content != "hello" || res.Usage == nil || res.Usage.TotalTokens != 4 || res.Provider != "openai" {
		t.Fatalf("unexpected result %+v", res)
	}
	body := <-bodies
	if _, ok := body["temperature"]; ok {
		t.Fatalf("expected temperature to be dropped, got %v", body)
	}
	if body["max_completion_tokens"] != float64(100) || body["max_tokens"] != nil {
		t.Fatalf("expected max_completion_tokens, got %v", body)
	}

	_, err = backend.Complete(context.Background(), msgs, llm.Options{Model: "gpt-4o-mini", Temperature: llm.Float(0.7), JSON: true, System: "be brief"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	body = <-bodies
	if body["temperature"] != 0.7 {
		t.Fatalf("expected temperature for gpt-4o-mini, got %v", body)
	}
	if format, _ := body["response_format"].(map[string]any); format["type"] != "json_object" {
		t.Fatalf("expected json response format, got %v", body["response_format"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 || messages[0].(map[string]any)["role"] != "system" {
		t.Fatalf("expected system message first, got %v", messages)
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		if code == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "2")
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	backend := llm.NewOpenAI(config.LLMProvider{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o"}, time.Second)
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}

	_, err := backend.Complete(context.Background(), msgs, llm.Options{})
	if !errors.Is(err, services.ErrRateLimit) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if wait, ok := services.RetryAfter(err); !ok || wait != 2*time.Second {
		t.Fatalf("expected retry-after 2s, got %v %v", wait, ok)
	}

	status.Store(http.StatusServiceUnavailable)
	_, err = backend.Complete(context.Background(), msgs, llm.Options{})
	if !errors.Is(err, services.ErrLLM) || services.ServiceName(err) != "openai" {
		t.Fatalf("expected llm error naming openai, got %v", err)
	}
	if !retry.IsTransient(err) {
		t.Fatalf("expected 503 to be retryable, got %v", err)
	}
}

func TestAnthropicMovesSystemToTopLevel(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Header.Get("x-api-key") != "ak" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("unexpected request %s %v", r.URL.Path, r.Header)
		}
		payload, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(payload, &body)
		bodies <- body
		_, _ = w.Write([]byte(`{"model":"claude-sonnet-4-5","content":[{"type":"text","text":"draft"}],"usage":{"input_tokens":5,"output_tokens":2}}`))
	}))
	defer srv.Close()

	backend := llm.NewAnthropic(config.LLMProvider{APIKey: "ak", BaseURL: srv.URL, Model: "claude-sonnet-4-5"}, time.Second)
	res, err := backend.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an editor."},
		{Role: llm.RoleUser, Content: "Edit this."},
	}, llm.Options{Temperature: llm.Float(0.2)})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	body := <-bodies
	if res.Content != "draft" || res.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected result %+v", res)
	}
	if body["system"] != "You are an editor." {
		t.Fatalf("expected top-level system, got %v", body["system"])
	}
	if messages, _ := body["messages"].([]any); len(messages) != 1 {
		t.Fatalf("expected only the user message, got %v", body["messages"])
	}
	if body["temperature"] != 0.2 || body["max_tokens"] == nil {
		t.Fatalf("unexpected sampling params %v", body)
	}
}

func TestGeminiGenerateContent(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		payload, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(payload, &body)
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"ok\":true}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3,"totalTokenCount":7}}`))
	}))
	defer srv.Close()

	backend, err := llm.NewGemini(context.Background(), config.LLMProvider{APIKey: "gk", BaseURL: srv.URL, Model: "gemini-2.5-flash"}, time.Second)
	if err != nil {
		t.Fatalf("NewGemini returned error: %v", err)
	}
	got, err := llm.CompleteJSON[map[string]bool](context.Background(), backend,
		[]llm.Message{{Role: llm.RoleUser, Content: "ping"}}, llm.Options{System: "reply ok"})
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	body := <-bodies
	if !got["ok"] {
		t.Fatalf("unexpected payload %v", got)
	}
	cfg, _ := body["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" {
		t.Fatalf("expected json mime type, got %v", body["generationConfig"])
	}
	if body["systemInstruction"] == nil {
		t.Fatalf("expected system instruction, got %v", body)
	}
}

func TestServiceRetriesTransientFailures(t *testing.T) {
	mock := llm.NewMock().Fail(errors.New("upstream 503")).Enqueue("done")
	policy := retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Sleep: noSleep}
	svc := llm.NewService(mock, policy, limiter.New("llm", 1), nil)

	res, err := svc.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "x"}}, llm.Options{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if res.Content != "done" || len(mock.Calls()) != 2 {
		t.Fatalf("expected success on second attempt, got %q after %d calls", res.Content, len(mock.Calls()))
	}
}

func TestRegistryResolvesSingletons(t *testing.T) {
	cfg := config.Default().LLM
	cfg.DefaultProvider = config.ProviderMock
	reg := llm.NewRegistry(cfg, retry.Policy{}, limiter.New("llm", 2), nil)
	ctx := context.Background()

	first, err := reg.Get(ctx, "mock")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	second, _ := reg.Get(ctx, " MOCK ")
	def, _ := reg.Default(ctx)
	if first != second || first != def {
		t.Fatal("expected one instance per provider name, shared with the default")
	}

	if _, err := reg.Get(ctx, "cohere"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown provider, got %v", err)
	}
	if _, err := reg.Get(ctx, config.ProviderAnthropic); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing key, got %v", err)
	}

	scripted := llm.NewMock("custom")
	reg.Register("mock", func(context.Context) (llm.Provider, error) { return scripted, nil })
	p, _ := reg.Get(ctx, "")
	res, err := p.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: "x"}}, llm.Options{})
	if err != nil || res.Content != "custom" {
		t.Fatalf("expected registered factory to win, got %q %v", res.Content, err)
	}
}

func TestOfflineMockEchoesAndAnswersJSON(t *testing.T) {
	m := llm.NewOffline()
	ctx := context.Background()
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "system"},
		{Role: llm.RoleUser, Content: "write about shoes"},
	}

	res, err := m.Complete(ctx, msgs, llm.Options{})
	if err != nil || res.Content != "write about shoes" {
		t.Fatalf("expected echo of user message, got %q %v", res.Content, err)
	}
	res, err = m.Complete(ctx, msgs, llm.Options{JSON: true})
	if err != nil || res.Content != "{}" {
		t.Fatalf("expected empty JSON object, got %q %v", res.Content, err)
	}
}
