// Package llm is the provider abstraction used for outline, draft, and edit
// generation.
//
// Every backend implements Provider. Registry builds at most one instance per
// provider name and wraps it in Service, which adds the shared LLM limiter,
// the retry policy, tracing, and logging. CompleteJSON layers structured
// output on top of any provider: it injects a JSON-only instruction when the
// model family lacks a native JSON mode, strips Markdown fences, and reports
// unparseable replies as ErrLLM errors naming the provider.
//
// Model quirks live in one prefix table (CapabilitiesFor). Request builders
// consult it and silently drop parameters a model family rejects, such as
// temperature on the o-series and gpt-5 models.
package llm
