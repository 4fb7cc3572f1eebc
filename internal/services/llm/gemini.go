package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"seoforge/internal/config"
	"seoforge/internal/services"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds the gemini backend. BaseURL is only set when overriding
// the public endpoint.
func NewGemini(ctx context.Context, cfg config.LLMProvider, timeout time.Duration) (*Gemini, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, config.ProviderGemini, "init", "api key not configured", nil)
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions.BaseURL = base
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, config.ProviderGemini, "init", "create client", err)
	}
	return &Gemini{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (g *Gemini) Name() string  { return config.ProviderGemini }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Complete(ctx context.Context, messages []Message, opts Options) (Result, error) {
	model := modelFor(g, opts)
	genCfg := &genai.GenerateContentConfig{}
	if opts.Temperature != nil && !CapabilitiesFor(model).NoTemperature {
		genCfg.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	var system []string
	if s := strings.TrimSpace(opts.System); s != "" {
		system = append(system, s)
	}
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		genCfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if len(contents) == 0 {
		return Result{}, services.Validation(config.ProviderGemini, "at least one user message is required")
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return Result{}, classifyGemini(err)
	}
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		reason := ""
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return Result{}, services.LLM(config.ProviderGemini, "empty content (finish_reason="+reason+")", nil)
	}
	result := Result{Content: content, Model: firstNonEmpty(resp.ModelVersion, model), Provider: config.ProviderGemini}
	if u := resp.UsageMetadata; u != nil {
		result.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return result, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("http %d: %s", apiErr.Code, apiErr.Message)
		if apiErr.Code == http.StatusTooManyRequests {
			return services.RateLimited(config.ProviderGemini, 0, wrapped)
		}
		return services.LLM(config.ProviderGemini, "request failed", wrapped)
	}
	return classify(config.ProviderGemini, err)
}
