package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"seoforge/internal/services"
)

// JSONInstruction is appended to the final message when the model does not
// enforce JSON output itself.
const JSONInstruction = "Respond with valid JSON only. Do not wrap the response in Markdown code fences and do not add commentary."

// CompleteJSON runs a completion and decodes the reply into T. Fenced replies
// decode the same as bare JSON. A reply that still fails to parse yields an
// ErrLLM error naming the provider.
func CompleteJSON[T any](ctx context.Context, p Provider, messages []Message, opts Options) (T, error) {
	var out T
	if len(messages) == 0 {
		return out, services.Validation("llm", "at least one message is required")
	}
	opts.JSON = true
	if !CapabilitiesFor(modelFor(p, opts)).StructuredOutput {
		messages = appendInstruction(messages, JSONInstruction)
	}
	res, err := p.Complete(ctx, messages, opts)
	if err != nil {
		return out, err
	}
	if err := DecodeJSON(res.Content, &out); err != nil {
		provider := res.Provider
		if provider == "" {
			provider = p.Name()
		}
		return out, services.LLM(provider, "response is not valid JSON", err)
	}
	return out, nil
}

func appendInstruction(messages []Message, instruction string) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	last := &out[len(out)-1]
	if strings.Contains(last.Content, instruction) {
		return out
	}
	last.Content = strings.TrimRight(last.Content, "\n") + "\n\n" + instruction
	return out
}

// DecodeJSON decodes a model reply into target, tolerating code fences and
// prose around a single JSON object or array.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	extracted := extractJSON(trimmed)
	if extracted == "" || extracted == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, Snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (payload: %s)", err, Snippet(extracted))
	}
	return nil
}

// StripFences removes a surrounding ``` or ```json fence.
func StripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(body[:nl]); lang == "" || isFenceLanguage(lang) {
			body = body[nl+1:]
		}
	} else if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func isFenceLanguage(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func extractJSON(content string) string {
	trimmed := StripFences(content)
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(trimmed, pair[0])
		end := strings.LastIndex(trimmed, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

// Snippet flattens and shortens content for error messages.
func Snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
