// Package deepgram provides a transcription source backed by the Deepgram
// streaming WebSocket API with speaker diarization enabled. It implements the
// stt.Provider interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"

	"github.com/minrelay/minrelay/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// maxReconnectElapsed bounds how long the session keeps retrying a broken
	// socket before giving up and closing the chunk channel.
	maxReconnectElapsed = 2 * time.Minute
)

// Compile-time interface check.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a diarized streaming transcription session with Deepgram.
// Broken sockets are redialled with exponential backoff; the session gives up
// and closes its chunk channel after maxReconnectElapsed of failed attempts.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	sess := &session{
		url:    wsURL,
		apiKey: p.apiKey,
		chunks: make(chan stt.Chunk, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	conn, err := sess.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	sess.setConn(conn)

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("diarize", "true")
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
			Words      []struct {
				Word    string `json:"word"`
				Speaker int    `json:"speaker"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements stt.SessionHandle.
type session struct {
	url    string
	apiKey string

	chunks chan stt.Chunk
	audio  chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	connMu sync.RWMutex
	conn   *websocket.Conn
}

// dial opens a WebSocket connection to the prepared streaming URL.
func (s *session) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.apiKey)

	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	return conn, err
}

func (s *session) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *session) currentConn() *websocket.Conn {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn
}

// SendAudio queues an encoded audio chunk for delivery to Deepgram.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

// Chunks returns the channel of transcript chunks.
func (s *session) Chunks() <-chan stt.Chunk { return s.chunks }

// Close terminates the session cleanly.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Tell Deepgram to flush pending audio before the socket drops.
		_ = s.currentConn().Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.currentConn().Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.currentConn().Write(ctx, websocket.MessageBinary, chunk); err != nil {
				// The read loop owns reconnection; drop this frame and retry
				// with the next one on the fresh socket.
				continue
			}
		case <-s.done:
			// Drain the audio channel before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.currentConn().Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches chunks. On a
// socket error it redials with exponential backoff until the session is closed
// or the backoff budget is exhausted.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.chunks)

	for {
		_, msg, err := s.currentConn().Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			default:
			}
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		c, ok := parseResponse(msg)
		if !ok {
			continue
		}

		select {
		case s.chunks <- c:
		case <-s.done:
		}
	}
}

// reconnect redials the streaming endpoint with exponential backoff.
// Reports whether a fresh connection was installed.
func (s *session) reconnect(ctx context.Context) bool {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxReconnectElapsed

	err := backoff.Retry(func() error {
		select {
		case <-s.done:
			return backoff.Permanent(errors.New("session closed"))
		default:
		}
		conn, dialErr := s.dial(ctx)
		if dialErr != nil {
			slog.Debug("deepgram reconnect attempt failed", "err", dialErr)
			return dialErr
		}
		s.setConn(conn)
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		slog.Warn("deepgram session lost", "err", err)
		return false
	}

	slog.Info("deepgram session reconnected")
	return true
}

// parseResponse parses a raw Deepgram WebSocket message into a Chunk.
// Returns (Chunk, true) on success, or (zero, false) if the message should be
// ignored (non-Results events, empty alternatives).
func parseResponse(data []byte) (stt.Chunk, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Chunk{}, false
	}
	if resp.Type != "Results" {
		return stt.Chunk{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Chunk{}, false
	}

	alt := resp.Channel.Alternatives[0]
	tag := ""
	if len(alt.Words) > 0 {
		// Diarization assigns a speaker index per word; the utterance-level
		// tag follows the first word.
		tag = "Speaker-" + strconv.Itoa(alt.Words[0].Speaker)
	}

	return stt.Chunk{
		Text:       alt.Transcript,
		SpeakerTag: tag,
		IsFinal:    resp.IsFinal,
		Timestamp:  time.Now().UTC(),
	}, true
}
