// Package mock provides a deterministic test double for embeddings.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/minrelay/minrelay/pkg/provider/embeddings"
)

// Compile-time interface check.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a mock embeddings.Provider. When Vectors has an entry for the
// input text it is returned; otherwise a deterministic vector derived from the
// text bytes is produced, so distinct texts get distinct but repeatable vectors.
type Provider struct {
	// Dims is the vector dimensionality. Zero defaults to 8.
	Dims int

	// Vectors maps input text to canned embedding vectors.
	Vectors map[string][]float32

	// EmbedErr, if non-nil, is returned by Embed.
	EmbedErr error

	mu         sync.Mutex
	embedCalls []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.embedCalls = append(p.embedCalls, text)
	p.mu.Unlock()

	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if v, ok := p.Vectors[text]; ok {
		return v, nil
	}

	dims := p.Dimensions()
	out := make([]float32, dims)
	for i, b := range []byte(text) {
		out[i%dims] += float32(b) / 255
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dims > 0 {
		return p.Dims
	}
	return 8
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return "mock-embed" }

// EmbedCalls returns the texts passed to Embed, in order.
func (p *Provider) EmbedCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.embedCalls))
	copy(out, p.embedCalls)
	return out
}
