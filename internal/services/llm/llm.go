package llm

import (
	"context"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion. Zero values defer to the provider.
type Options struct {
	Model string
	// Temperature is omitted from the request when nil or when the model
	// family rejects it.
	Temperature *float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response.
	JSON bool
	// System is prepended as a system message.
	System string
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a completed response.
type Result struct {
	Content  string
	Usage    *Usage
	Model    string
	Provider string
}

// Provider is the single completion contract implemented by every backend.
type Provider interface {
	Name() string
	// Model is the model used when Options.Model is empty.
	Model() string
	Complete(ctx context.Context, messages []Message, opts Options) (Result, error)
}

// Float returns a pointer to v, for Options.Temperature.
func Float(v float64) *float64 { return &v }

// Capabilities describe request quirks of a model family.
type Capabilities struct {
	// NoTemperature models reject the temperature parameter.
	NoTemperature bool
	// MaxCompletionTokens models take max_completion_tokens instead of
	// max_tokens.
	MaxCompletionTokens bool
	// StructuredOutput models enforce JSON responses natively.
	StructuredOutput bool
}

var modelCapabilities = []struct {
	prefix string
	caps   Capabilities
}{
	{"o1", Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
	{"o3", Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
	{"o4", Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
	{"gpt-5", Capabilities{NoTemperature: true, MaxCompletionTokens: true, StructuredOutput: true}},
	{"gpt-", Capabilities{StructuredOutput: true}},
	{"gemini", Capabilities{StructuredOutput: true}},
	{"claude", Capabilities{}},
}

// CapabilitiesFor looks up model by name prefix. A vendor segment such as
// "openai/" is ignored. Unknown models get the zero value.
func CapabilitiesFor(model string) Capabilities {
	name := strings.ToLower(strings.TrimSpace(model))
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	for _, entry := range modelCapabilities {
		if strings.HasPrefix(name, entry.prefix) {
			return entry.caps
		}
	}
	return Capabilities{}
}

func modelFor(p Provider, opts Options) string {
	if model := strings.TrimSpace(opts.Model); model != "" {
		return model
	}
	return p.Model()
}

// withSystem returns messages with opts.System prepended when set.
func withSystem(messages []Message, opts Options) []Message {
	if strings.TrimSpace(opts.System) == "" {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: opts.System})
	return append(out, messages...)
}
