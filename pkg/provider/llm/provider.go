// Package llm defines the Provider interface for language-model backends.
//
// An LLM provider wraps a remote or local chat-completion API (e.g., OpenAI,
// Anthropic via any-llm, or a local Ollama instance) and exposes a uniform
// request/response interface so that the enrichment consumers never couple to
// a specific SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled, Complete must return as
// quickly as possible with a wrapped ctx error.
package llm

import "context"

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// textual content. All fields may be zero when the backend does not report usage.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is typically from
	// the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// greedy decoding, which is what the structured-extraction consumers want.
	Temperature float64

	// MaxTokens caps completion length. Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is the full (non-streaming) model reply.
type CompletionResponse struct {
	// Content is the assistant's reply text. May be empty when the model
	// produced no text output.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives. A nil error implies a non-nil response, though the
	// response Content may still be empty.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
