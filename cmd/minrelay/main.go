// Command minrelay is the main entry point for the Minrelay transcription
// relay. It streams meeting audio to a transcription provider, enriches each
// finalized chunk through the key-point and speaker-identity pipelines, and
// persists the results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minrelay/minrelay/internal/app"
	"github.com/minrelay/minrelay/internal/config"
	"github.com/minrelay/minrelay/internal/observe"
	oaembed "github.com/minrelay/minrelay/pkg/provider/embeddings/openai"
	"github.com/minrelay/minrelay/pkg/provider/llm"
	"github.com/minrelay/minrelay/pkg/provider/llm/anyllm"
	oaillm "github.com/minrelay/minrelay/pkg/provider/llm/openai"
	"github.com/minrelay/minrelay/pkg/provider/stt/deepgram"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	stdinAudio := flag.Bool("stdin", false, "forward raw audio from stdin to the transcription stream")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "minrelay: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "minrelay: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("minrelay starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "minrelay",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	if cfg.Server.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.Server.MetricsAddr)
	}

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	var appOpts []app.Option
	if *stdinAudio {
		appOpts = append(appOpts, app.WithAudioSource(os.Stdin))
	}

	application, err := app.New(ctx, cfg, providers, appOpts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("relay ready — press Ctrl+C to shut down", "session", application.SessionID())

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates all providers named in cfg and returns them in
// an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := buildLLM(name, cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	switch name := cfg.Providers.STT.Name; name {
	case "":
	case "deepgram":
		var opts []deepgram.Option
		if cfg.Providers.STT.Model != "" {
			opts = append(opts, deepgram.WithModel(cfg.Providers.STT.Model))
		}
		if cfg.Meeting.Language != "" {
			opts = append(opts, deepgram.WithLanguage(cfg.Meeting.Language))
		}
		p, err := deepgram.New(cfg.Providers.STT.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", name)
	}

	switch name := cfg.Providers.Embeddings.Name; name {
	case "":
	case "openai":
		var opts []oaembed.Option
		if cfg.Providers.Embeddings.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(cfg.Providers.Embeddings.BaseURL))
		}
		p, err := oaembed.New(cfg.Providers.Embeddings.APIKey, cfg.Providers.Embeddings.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", name)
	}

	return ps, nil
}

// buildLLM constructs the configured chat provider. "openai" uses the native
// SDK; every other name goes through the any-llm multiplexer.
func buildLLM(name string, entry config.ProviderEntry) (llm.Provider, error) {
	if name == "openai" {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(name, entry.Model, opts...)
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

// startMetricsServer serves the Prometheus /metrics endpoint until ctx is
// cancelled. Failures are logged, not fatal: a broken metrics listener must
// not take the relay down.
func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server error", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
