// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider wraps a service that maps text strings to dense
// float32 vectors (e.g., OpenAI text-embedding-3). The key-point log uses
// these vectors for semantic search over persisted meeting key points.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions). Callers must not mix vectors from
// different Provider instances in the same similarity computation.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails
	// or ctx is cancelled. Text is passed through verbatim; any model-specific
	// prefixing is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every embedding vector produced
	// by this provider. Constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier
	// (e.g., "text-embedding-3-small"). Useful for logging.
	ModelID() string
}
