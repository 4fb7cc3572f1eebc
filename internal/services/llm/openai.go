package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"seoforge/internal/config"
	"seoforge/internal/services"
	"seoforge/internal/services/apiclient"
)

// OpenAI speaks the chat completions API. It also serves OpenRouter, which
// exposes the same schema under a different base URL.
type OpenAI struct {
	name   string
	model  string
	hasKey bool
	api    *apiclient.Client
}

// NewOpenAI builds the openai backend.
func NewOpenAI(cfg config.LLMProvider, timeout time.Duration) *OpenAI {
	return newChatBackend(config.ProviderOpenAI, cfg, timeout, nil)
}

// NewOpenRouter builds the openrouter backend. Referer and title identify the
// application in OpenRouter's dashboard.
func NewOpenRouter(cfg config.LLMProvider, referer, title string, timeout time.Duration) *OpenAI {
	extra := http.Header{}
	if referer = strings.TrimSpace(referer); referer != "" {
		extra.Set("HTTP-Referer", referer)
		extra.Set("Referer", referer)
	}
	if title = strings.TrimSpace(title); title != "" {
		extra.Set("X-Title", title)
	}
	return newChatBackend(config.ProviderOpenRouter, cfg, timeout, extra)
}

func newChatBackend(name string, cfg config.LLMProvider, timeout time.Duration, extra http.Header) *OpenAI {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))
	for key, values := range extra {
		header[key] = values
	}
	return &OpenAI{
		name:   name,
		model:  strings.TrimSpace(cfg.Model),
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
		api:    apiclient.New(name, strings.TrimSpace(cfg.BaseURL), timeout, header),
	}
}

func (o *OpenAI) Name() string  { return o.name }
func (o *OpenAI) Model() string { return o.model }

type chatCompletionRequest struct {
	Model               string            `json:"model"`
	Messages            []Message         `json:"messages"`
	Temperature         *float64          `json:"temperature,omitempty"`
	MaxTokens           int               `json:"max_tokens,omitempty"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
	ResponseFormat      map[string]string `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema even when stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message, opts Options) (Result, error) {
	if !o.hasKey {
		return Result{}, services.Wrap(services.ErrConfiguration, o.name, "complete", "api key not configured", nil)
	}
	model := modelFor(o, opts)
	req := buildChatRequest(model, withSystem(messages, opts), opts)

	var resp chatCompletionResponse
	if err := o.api.PostJSON(ctx, "complete", "/chat/completions", req, &resp); err != nil {
		return Result{}, classify(o.name, err)
	}
	if resp.Error != nil {
		return Result{}, services.LLM(o.name, "api error: "+strings.TrimSpace(resp.Error.Message), nil)
	}
	content, finish, refusal := extractChoice(resp)
	if content == "" {
		if len(resp.Choices) == 0 {
			return Result{}, services.LLM(o.name, "empty choices", nil)
		}
		return Result{}, services.LLM(o.name, "empty content (finish_reason="+finish+", refusal="+refusal+")", nil)
	}
	result := Result{Content: content, Model: firstNonEmpty(resp.Model, model), Provider: o.name}
	if resp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

func buildChatRequest(model string, messages []Message, opts Options) chatCompletionRequest {
	caps := CapabilitiesFor(model)
	req := chatCompletionRequest{Model: model, Messages: messages}
	if opts.Temperature != nil && !caps.NoTemperature {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		if caps.MaxCompletionTokens {
			req.MaxCompletionTokens = opts.MaxTokens
		} else {
			req.MaxTokens = opts.MaxTokens
		}
	}
	if opts.JSON {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}
	return req
}

func extractChoice(resp chatCompletionResponse) (content, finish, refusal string) {
	for _, choice := range resp.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if text := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
			return text, finish, refusal
		}
		for _, call := range choice.Message.ToolCalls {
			if args := strings.TrimSpace(call.Function.Arguments); args != "" {
				return args, finish, refusal
			}
		}
	}
	return "", finish, refusal
}

// classify tags transport failures as LLM errors naming the provider while
// keeping rate-limit and configuration errors as they are.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, services.ErrRateLimit) || errors.Is(err, services.ErrConfiguration) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.LLM(provider, "request failed", err)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
