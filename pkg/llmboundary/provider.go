// Package llmboundary implements call_llm (spec §4.8): the single
// crossing point between the pipeline and the LLM service. Complexity
// selects a model tier, the response is decoded and validated against
// a caller-supplied schema with a bounded retry, and one observability
// span wraps the whole call.
//
// Grounded on hector's pkg/llms.LLMProvider/StructuredOutputProvider
// split (Generate vs. a schema-aware variant) and its
// pkg/llms/anthropic.go HTTP client — hector talks to Anthropic over
// bare net/http with no vendor SDK, so this package does the same
// rather than reaching for an unlisted dependency.
package llmboundary

import "context"

// Message is a minimal chat turn, trimmed from hector's
// pkg/llms.Message to the fields call_llm actually needs (system/user,
// no multi-turn tool-call threading — Act's tool calls are structured
// output, not native function-calling, per spec §4.6.2).
type Message struct {
	Role    string
	Content string
}

// Response is one provider call's result.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is the boundary's abstraction over a concrete LLM backend.
type Provider interface {
	// Generate issues one non-streaming completion request against
	// model.
	Generate(ctx context.Context, model string, messages []Message) (Response, error)
}
