// Package app wires all Minrelay subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the main relay loop, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithKeypointLog, WithSpeakerDirectory, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minrelay/minrelay/internal/config"
	"github.com/minrelay/minrelay/internal/enrich"
	"github.com/minrelay/minrelay/internal/keypoint"
	"github.com/minrelay/minrelay/internal/observe"
	"github.com/minrelay/minrelay/internal/report"
	"github.com/minrelay/minrelay/internal/speaker"
	"github.com/minrelay/minrelay/pkg/provider/embeddings"
	"github.com/minrelay/minrelay/pkg/provider/llm"
	"github.com/minrelay/minrelay/pkg/provider/stt"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go from the config.
type Providers struct {
	LLM        llm.Provider
	STT        stt.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and drives the transcript relay.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	keypoints keypoint.Log
	directory speaker.Directory
	orch      *enrich.Orchestrator
	metrics   *observe.Metrics
	pool      *pgxpool.Pool

	sessionID string
	startedAt time.Time

	// audioSrc, when set, is copied into the STT session by Run.
	audioSrc io.Reader

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithKeypointLog injects a key-point log instead of creating one from config.
func WithKeypointLog(l keypoint.Log) Option {
	return func(a *App) { a.keypoints = l }
}

// WithSpeakerDirectory injects a speaker directory instead of creating one
// from config.
func WithSpeakerDirectory(d speaker.Directory) Option {
	return func(a *App) { a.directory = d }
}

// WithMetrics injects a metrics bundle instead of using the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithAudioSource wires a raw audio stream that Run forwards to the STT
// session (e.g., os.Stdin when piping from a capture tool).
func WithAudioSource(r io.Reader) Option {
	return func(a *App) { a.audioSrc = r }
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(a *App) { a.sessionID = id }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Use Option functions to inject test doubles for any
// subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		startedAt: time.Now().UTC(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Enrichment pipelines + orchestrator ───────────────────────────
	if err := a.initOrchestrator(); err != nil {
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores sets up the PostgreSQL stores, or in-memory fallbacks when no
// DSN is configured, unless both were injected.
func (a *App) initStores(ctx context.Context) error {
	if a.keypoints != nil && a.directory != nil {
		return nil // both injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured, using in-memory stores")
		if a.keypoints == nil {
			a.keypoints = keypoint.NewMemLog()
		}
		if a.directory == nil {
			a.directory = speaker.NewMemDirectory()
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	if a.keypoints == nil {
		var logOpts []keypoint.LogOption
		if a.providers.Embeddings != nil {
			logOpts = append(logOpts, keypoint.WithEmbedder(a.providers.Embeddings))
		}
		pl := keypoint.NewPostgresLog(pool, logOpts...)
		if a.cfg.Storage.Migrate {
			if err := pl.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate keypoints: %w", err)
			}
		}
		a.keypoints = pl
	}

	if a.directory == nil {
		pd := speaker.NewPostgresDirectory(pool)
		if a.cfg.Storage.Migrate {
			if err := pd.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate speakers: %w", err)
			}
		}
		a.directory = pd
	}

	return nil
}

// initOrchestrator builds the two enrichment pipelines and the orchestrator
// in front of them.
func (a *App) initOrchestrator() error {
	if a.providers.LLM == nil {
		return fmt.Errorf("an LLM provider is required")
	}

	pipeOpts := []enrich.Option{
		enrich.WithMetrics(a.metrics),
		enrich.WithSessionID(a.sessionID),
	}

	kp := enrich.NewKeypointPipeline(
		enrich.NewKeypointConsumer(a.providers.LLM),
		a.keypoints,
		pipeOpts...,
	)
	sp := enrich.NewSpeakerPipeline(
		enrich.NewSpeakerConsumer(a.providers.LLM),
		a.directory,
		pipeOpts...,
	)
	a.orch = enrich.New(kp, sp, a.directory, pipeOpts...)
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// SessionID returns the identifier attached to every key point this App
// persists.
func (a *App) SessionID() string { return a.sessionID }

// Orchestrator exposes the chunk orchestrator, e.g. for manual speaker
// corrections from an admin surface.
func (a *App) Orchestrator() *enrich.Orchestrator { return a.orch }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the relay loop and blocks until ctx is cancelled or the STT
// session's chunk channel closes.
//
// Run opens a transcription stream, forwards the configured audio source
// into it, and dispatches each received chunk to the orchestrator. Chunks
// are processed concurrently; a slow enrichment never blocks intake.
func (a *App) Run(ctx context.Context) error {
	if a.providers.STT == nil {
		return fmt.Errorf("app: an STT provider is required to run")
	}

	sess, err := a.providers.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: a.cfg.Meeting.SampleRate,
		Channels:   a.cfg.Meeting.Channels,
		Language:   a.cfg.Meeting.Language,
	})
	if err != nil {
		return fmt.Errorf("app: start transcription stream: %w", err)
	}
	defer sess.Close()

	a.metrics.ActiveSessions.Add(ctx, 1)
	defer a.metrics.ActiveSessions.Add(ctx, -1)

	if a.audioSrc != nil {
		go a.forwardAudio(ctx, sess)
	}

	slog.Info("relay running", "session", a.sessionID)

	// Track in-flight enrichments so Run does not return with work pending.
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-sess.Chunks():
			if !ok {
				slog.Info("transcription stream ended", "session", a.sessionID)
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.orch.Process(ctx, chunk)
			}()
		}
	}
}

// forwardAudio copies raw audio from the configured source into the STT
// session until the source is drained or ctx is cancelled.
func (a *App) forwardAudio(ctx context.Context, sess stt.SessionHandle) {
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := a.audioSrc.Read(buf)
		if n > 0 {
			if serr := sess.SendAudio(buf[:n]); serr != nil {
				slog.Warn("audio forward failed", "err", serr)
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("audio source read failed", "err", err)
			}
			return
		}
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown exports the meeting report (when configured) and tears down all
// subsystems in reverse-init order. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.exportReport(ctx); err != nil {
			slog.Warn("report export failed", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// exportReport writes the XLSX meeting report covering everything captured
// since this App started. A trailing separator on the configured path makes
// it a directory, with a timestamped filename generated inside it.
func (a *App) exportReport(ctx context.Context) error {
	path := a.cfg.Report.Path
	if path == "" {
		return nil
	}
	if strings.HasSuffix(path, string(filepath.Separator)) || strings.HasSuffix(path, "/") {
		path = filepath.Join(path, report.Filename(a.startedAt))
	}

	items, err := a.keypoints.ListSince(ctx, a.startedAt)
	if err != nil {
		return fmt.Errorf("list key points: %w", err)
	}
	speakers, err := a.directory.List(ctx)
	if err != nil {
		return fmt.Errorf("list speakers: %w", err)
	}

	if err := report.Write(path, items, speakers); err != nil {
		return err
	}
	slog.Info("meeting report written", "path", path, "keypoints", len(items), "speakers", len(speakers))
	return nil
}
