package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"seoforge/internal/config"
	"seoforge/internal/services"
	"seoforge/internal/services/apiclient"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 8192
)

// Anthropic speaks the messages API. It has no JSON response mode, so
// CompleteJSON always injects the JSON-only instruction.
type Anthropic struct {
	model  string
	hasKey bool
	api    *apiclient.Client
}

// NewAnthropic builds the anthropic backend.
func NewAnthropic(cfg config.LLMProvider, timeout time.Duration) *Anthropic {
	header := http.Header{}
	header.Set("x-api-key", strings.TrimSpace(cfg.APIKey))
	header.Set("anthropic-version", anthropicVersion)
	return &Anthropic{
		model:  strings.TrimSpace(cfg.Model),
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
		api:    apiclient.New(config.ProviderAnthropic, strings.TrimSpace(cfg.BaseURL), timeout, header),
	}
}

func (a *Anthropic) Name() string  { return config.ProviderAnthropic }
func (a *Anthropic) Model() string { return a.model }

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Anthropic) Complete(ctx context.Context, messages []Message, opts Options) (Result, error) {
	if !a.hasKey {
		return Result{}, services.Wrap(services.ErrConfiguration, config.ProviderAnthropic, "complete", "api key not configured", nil)
	}
	model := modelFor(a, opts)
	req := anthropicRequest{Model: model, MaxTokens: anthropicMaxTokens}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil && !CapabilitiesFor(model).NoTemperature {
		req.Temperature = opts.Temperature
	}

	// System turns move to the top-level field.
	system := []string{}
	if s := strings.TrimSpace(opts.System); s != "" {
		system = append(system, s)
	}
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		req.Messages = append(req.Messages, msg)
	}
	req.System = strings.Join(system, "\n\n")
	if len(req.Messages) == 0 {
		return Result{}, services.Validation(config.ProviderAnthropic, "at least one user message is required")
	}

	var resp anthropicResponse
	if err := a.api.PostJSON(ctx, "complete", "/messages", req, &resp); err != nil {
		return Result{}, classify(config.ProviderAnthropic, err)
	}
	if resp.Error != nil {
		return Result{}, services.LLM(config.ProviderAnthropic, resp.Error.Type+": "+resp.Error.Message, nil)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return Result{}, services.LLM(config.ProviderAnthropic, "empty content (stop_reason="+resp.StopReason+")", nil)
	}
	return Result{
		Content:  content,
		Model:    firstNonEmpty(resp.Model, model),
		Provider: config.ProviderAnthropic,
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
