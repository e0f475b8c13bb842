// Package mock provides a test double for the enrich.Consumer interface.
//
// Use Consumer to feed scripted replies to the pipelines and to assert on the
// payloads they send, without a live language-model backend.
package mock

import (
	"context"
	"sync"

	"github.com/minrelay/minrelay/internal/enrich"
)

// SendCall records a single invocation of Send.
type SendCall struct {
	// Ctx is the context passed to Send.
	Ctx context.Context
	// Payload is the ChunkPayload passed to Send.
	Payload enrich.ChunkPayload
}

// Consumer is a mock implementation of enrich.Consumer.
// Zero values cause Send to return ("", nil). All methods are safe for
// concurrent use; call records are guarded by an internal mutex.
type Consumer struct {
	mu sync.Mutex

	// Reply is returned by Send.
	Reply string

	// Err, if non-nil, is returned as the error from Send.
	Err error

	// SendFunc, if non-nil, overrides Reply/Err entirely. Useful for
	// per-call behaviour such as blocking to assert mutual exclusion.
	SendFunc func(ctx context.Context, payload enrich.ChunkPayload) (string, error)

	// SendCalls records every invocation of Send in order.
	SendCalls []SendCall
}

// Compile-time interface check.
var _ enrich.Consumer = (*Consumer)(nil)

// Send implements enrich.Consumer.
func (c *Consumer) Send(ctx context.Context, payload enrich.ChunkPayload) (string, error) {
	c.mu.Lock()
	c.SendCalls = append(c.SendCalls, SendCall{Ctx: ctx, Payload: payload})
	fn := c.SendFunc
	reply, err := c.Reply, c.Err
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, payload)
	}
	return reply, err
}

// Calls returns a snapshot of the recorded Send invocations.
func (c *Consumer) Calls() []SendCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SendCall, len(c.SendCalls))
	copy(out, c.SendCalls)
	return out
}

// CallCount returns the number of Send invocations so far.
func (c *Consumer) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.SendCalls)
}
