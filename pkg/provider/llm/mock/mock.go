// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the enrichment consumers send
// correct CompletionRequests and to feed controlled responses without a live
// LLM backend. Set response fields before calling any method; mutating them
// during a concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: `{"items":[]}`},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/minrelay/minrelay/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// A zero-valued Provider returns an empty response, matching the contract
// that a nil error implies a non-nil response. Set CompleteErr to inject
// errors.
//
// All methods are safe for concurrent use; call records are guarded by an
// internal mutex.
type Provider struct {
	mu sync.Mutex

	// CompleteResponse is returned by Complete. When nil and CompleteErr is
	// also nil, Complete returns an empty response instead.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, if non-nil, overrides the canned response entirely.
	// Useful for per-call behaviour (e.g., blocking to assert mutual exclusion).
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn := p.CompleteFunc
	resp, err := p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if resp == nil && err == nil {
		resp = &llm.CompletionResponse{}
	}
	return resp, err
}

// Calls returns a snapshot of the recorded Complete invocations.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}
