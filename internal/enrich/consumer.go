// Package enrich implements the enrichment core of Minrelay: the component
// that takes each finalized transcript chunk and drives two serialized AI
// pipelines — key-point extraction and speaker-identity resolution — and
// reconciles their output into durable storage.
//
// The design is deliberately best-effort. Consumer output is free text that
// merely promises to be JSON, so unparseable responses are treated as
// expected input and discarded quietly; transport and persistence faults are
// absorbed and logged at the [Orchestrator] boundary so that transcription
// never stalls because enrichment misbehaved.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minrelay/minrelay/pkg/provider/llm"
)

// ChunkPayload is the user-message body sent to both consumers, serialized as
// JSON. The wire field names are part of the consumer contract.
type ChunkPayload struct {
	Transcript string    `json:"transcript"`
	SpeakerTag string    `json:"guestId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Consumer abstracts one enrichment backend: given a chunk payload, return
// the assistant's free-form text reply. The reply is expected — but not
// guaranteed — to be JSON matching the consumer's fixed response schema.
//
// No retry or backoff happens at this layer. A call either returns text
// (possibly empty or malformed) or a transport-level error, which the calling
// pipeline surfaces to the orchestrator. There is no internal timeout; the
// caller's ctx governs abort.
//
// Implementations must be safe for concurrent use.
type Consumer interface {
	Send(ctx context.Context, payload ChunkPayload) (string, error)
}

// keypointInstruction is the fixed system instruction for the key-point
// extraction consumer. It pins the exact response schema so the tolerant
// parser has a stable shape to decode against.
const keypointInstruction = `You are a meeting minutes assistant. You receive one finalized transcript chunk as JSON: {"transcript": "...", "guestId": "...", "timestamp": "..."}.

Extract the key points and action items from the transcript.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "items": [
    {
      "guestId": "<speaker tag the point belongs to>",
      "point": "<the key point or action item text>",
      "todo": <true if this is an action item, else false>,
      "suggestedBy": "<speaker tag of whoever raised it>",
      "needsFollowUp": <true if the point needs later review, else false>,
      "timestamp": "<RFC 3339 time, optional>"
    }
  ]
}

If the chunk contains nothing worth recording, return {"items": []}.`

// speakerInstruction is the fixed system instruction for the speaker-identity
// consumer. The model is told to return empty strings rather than omit fields
// when unconfident, which keeps the response shape constant.
const speakerInstruction = `You are a meeting attendee identification assistant. You receive one finalized transcript chunk as JSON: {"transcript": "...", "guestId": "...", "timestamp": "..."}.

From self-introductions and references in the transcript, resolve the speaker's real name and job title.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "guestId": "<the speaker tag from the request>",
  "guestName": "<resolved display name, or "" when unknown>",
  "jobTitle": "<resolved job title, or "" when unknown>",
  "confidence": <0.0-1.0>
}

When you are not confident, return empty strings for guestName and jobTitle — never omit a field.`

// LLMConsumer implements [Consumer] on top of an [llm.Provider] with a fixed
// system instruction. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to use a
// specific model, construct the [llm.Provider] with that model configured.
type LLMConsumer struct {
	provider    llm.Provider
	instruction string
	temperature float64
	maxTokens   int
}

// Compile-time interface check.
var _ Consumer = (*LLMConsumer)(nil)

// ConsumerOption is a functional option for configuring an [LLMConsumer].
type ConsumerOption func(*LLMConsumer)

// WithTemperature sets the sampling temperature. The default of 0 requests
// greedy decoding, which suits structured extraction.
func WithTemperature(t float64) ConsumerOption {
	return func(c *LLMConsumer) { c.temperature = t }
}

// WithMaxTokens caps the completion length. Zero means provider default.
func WithMaxTokens(n int) ConsumerOption {
	return func(c *LLMConsumer) { c.maxTokens = n }
}

// NewKeypointConsumer returns a [Consumer] configured for key-point and
// action-item extraction.
func NewKeypointConsumer(provider llm.Provider, opts ...ConsumerOption) *LLMConsumer {
	return newConsumer(provider, keypointInstruction, opts...)
}

// NewSpeakerConsumer returns a [Consumer] configured for speaker-identity
// resolution.
func NewSpeakerConsumer(provider llm.Provider, opts ...ConsumerOption) *LLMConsumer {
	return newConsumer(provider, speakerInstruction, opts...)
}

func newConsumer(provider llm.Provider, instruction string, opts ...ConsumerOption) *LLMConsumer {
	c := &LLMConsumer{
		provider:    provider,
		instruction: instruction,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send implements [Consumer]. It serializes payload as the user message and
// returns the model's reply text verbatim.
func (c *LLMConsumer) Send(ctx context.Context, payload ChunkPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("enrich: marshal payload: %w", err)
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: c.instruction,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: string(body)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("enrich: consumer call: %w", err)
	}
	return resp.Content, nil
}
