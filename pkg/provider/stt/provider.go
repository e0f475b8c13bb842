// Package stt defines the contract with the external transcription source.
//
// A transcription source wraps a real-time speech-to-text service (e.g., the
// Deepgram streaming API) and emits a sequence of Chunk values: interim
// guesses for responsiveness and finalized utterances for enrichment. The
// relay core consumes only finalized chunks; everything upstream of the Chunk
// boundary — audio capture, codecs, the provider's own recovery protocol — is
// the source's business.
//
// Implementations must be safe for concurrent use. The chunk output channel
// is goroutine-safe by construction.
package stt

import (
	"context"
	"time"
)

// Chunk is one unit of transcribed speech with speaker attribution, as
// produced by the transcription source. It is an immutable value: the core
// consumes each chunk exactly once and never persists it directly.
type Chunk struct {
	// Text is the utterance content. Whitespace-only chunks carry no signal
	// and are dropped by the orchestrator's finality gate.
	Text string

	// SpeakerTag identifies the speaker as assigned by the source's
	// diarization (e.g., "Speaker-0"). It is opaque and stable within a
	// session but carries no meaning across sessions.
	SpeakerTag string

	// IsFinal distinguishes confirmed results from interim ones. Only final
	// chunks trigger enrichment.
	IsFinal bool

	// Timestamp is the UTC arrival time of the utterance.
	Timestamp time.Time
}

// StreamConfig describes the audio format and recognition hints for a new
// transcription session. All fields must be compatible with what the
// underlying provider supports.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// providers).
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en",
	// "de-DE"). Empty lets the provider auto-detect, if supported.
	Language string
}

// SessionHandle represents an open transcription streaming session. It is an
// interface so that test code can provide scripted implementations without a
// live provider connection.
//
// Callers must call Close when the session is no longer needed; failing to do
// so may leak goroutines and network connections inside the implementation.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of encoded audio bytes to the provider. The
	// bytes are opaque to the session: no decoding or re-framing happens here.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Chunks returns a read-only channel that emits Chunk values, both
	// interim (IsFinal false) and finalized (IsFinal true), in recognition
	// order. The channel is closed when the session ends.
	Chunks() <-chan Chunk

	// Close terminates the session, flushes pending audio, and releases all
	// associated resources. After Close returns, the Chunks channel will be
	// closed. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming transcription backend.
type Provider interface {
	// StartStream opens a streaming transcription session. The supplied
	// context governs the dial and the lifetime of the session's background
	// goroutines; cancelling it tears the session down.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
