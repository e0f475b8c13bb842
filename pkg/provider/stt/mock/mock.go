// Package mock provides test doubles for the stt.Provider and
// stt.SessionHandle interfaces.
//
// The Session emits a scripted sequence of chunks and records any audio sent
// to it, so app-level tests can drive the relay without a live transcription
// backend.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/minrelay/minrelay/pkg/provider/stt"
)

// Compile-time interface checks.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// Provider is a mock stt.Provider that hands out a pre-built Session.
type Provider struct {
	// StartSession is returned by StartStream. When nil, StartStream creates
	// an empty Session.
	StartSession *Session

	// StartErr, if non-nil, is returned as the error from StartStream.
	StartErr error

	mu         sync.Mutex
	startCalls []stt.StreamConfig
}

// StartStream implements stt.Provider.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.startCalls = append(p.startCalls, cfg)
	p.mu.Unlock()

	if p.StartErr != nil {
		return nil, p.StartErr
	}
	if p.StartSession != nil {
		return p.StartSession, nil
	}
	return NewSession(nil), nil
}

// StartCalls returns the configs passed to StartStream, in order.
func (p *Provider) StartCalls() []stt.StreamConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stt.StreamConfig, len(p.startCalls))
	copy(out, p.startCalls)
	return out
}

// Session is a scripted stt.SessionHandle.
type Session struct {
	chunks chan stt.Chunk

	mu     sync.Mutex
	closed bool
	audio  [][]byte
}

// NewSession returns a Session whose Chunks channel will emit the given
// script in order. The channel stays open until Close (or Finish) is called,
// so tests can also push additional chunks via Emit.
func NewSession(script []stt.Chunk) *Session {
	s := &Session{chunks: make(chan stt.Chunk, len(script)+16)}
	for _, c := range script {
		s.chunks <- c
	}
	return s
}

// Emit pushes one more chunk onto the session's output channel.
func (s *Session) Emit(c stt.Chunk) {
	s.chunks <- c
}

// Finish closes the chunk channel without marking the session closed, which
// lets a consumer loop drain naturally.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
}

// SendAudio implements stt.SessionHandle. It records the bytes for later
// inspection.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock stt: session is closed")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.audio = append(s.audio, buf)
	return nil
}

// Chunks implements stt.SessionHandle.
func (s *Session) Chunks() <-chan stt.Chunk { return s.chunks }

// Close implements stt.SessionHandle.
func (s *Session) Close() error {
	s.Finish()
	return nil
}

// SentAudio returns a snapshot of all audio buffers passed to SendAudio.
func (s *Session) SentAudio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}
