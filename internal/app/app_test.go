package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minrelay/minrelay/internal/app"
	"github.com/minrelay/minrelay/internal/config"
	"github.com/minrelay/minrelay/internal/keypoint"
	"github.com/minrelay/minrelay/internal/speaker"
	"github.com/minrelay/minrelay/pkg/provider/llm"
	llmmock "github.com/minrelay/minrelay/pkg/provider/llm/mock"
	"github.com/minrelay/minrelay/pkg/provider/stt"
	sttmock "github.com/minrelay/minrelay/pkg/provider/stt/mock"
)

// testConfig returns a minimal config backed by in-memory stores.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			LogLevel: config.LogInfo,
		},
		Meeting: config.MeetingConfig{
			Language:   "en",
			SampleRate: 16000,
			Channels:   1,
		},
	}
}

// scriptedLLM answers the key-point consumer with one item and the speaker
// consumer with a resolved identity, keyed off the system instruction.
func scriptedLLM() *llmmock.Provider {
	return &llmmock.Provider{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if strings.Contains(req.SystemPrompt, "minutes assistant") {
				return &llm.CompletionResponse{
					Content: `{"items":[{"guestId":"Speaker-0","point":"Launch moves to May","todo":false,"suggestedBy":"Speaker-0","needsFollowUp":false}]}`,
				}, nil
			}
			return &llm.CompletionResponse{
				Content: `{"guestId":"Speaker-0","guestName":"Ada Lovelace","jobTitle":"CTO","confidence":0.95}`,
			}, nil
		},
	}
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	log := keypoint.NewMemLog()
	dir := speaker.NewMemDirectory()

	application, err := app.New(
		context.Background(),
		testConfig(),
		&app.Providers{LLM: scriptedLLM(), STT: &sttmock.Provider{}},
		app.WithKeypointLog(log),
		app.WithSpeakerDirectory(dir),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
	if application.SessionID() == "" {
		t.Error("SessionID() is empty, want a generated identifier")
	}
	if application.Orchestrator() == nil {
		t.Error("Orchestrator() returned nil")
	}
}

func TestNew_RequiresLLM(t *testing.T) {
	t.Parallel()

	_, err := app.New(
		context.Background(),
		testConfig(),
		&app.Providers{STT: &sttmock.Provider{}},
		app.WithKeypointLog(keypoint.NewMemLog()),
		app.WithSpeakerDirectory(speaker.NewMemDirectory()),
	)
	if err == nil {
		t.Fatal("New() without an LLM provider should fail")
	}
}

func TestNew_MemStoreFallback(t *testing.T) {
	t.Parallel()

	// No DSN and no injected stores: New must still succeed.
	application, err := app.New(
		context.Background(),
		testConfig(),
		&app.Providers{LLM: scriptedLLM(), STT: &sttmock.Provider{}},
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
}

func TestRun_RelaysChunksToStores(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession([]stt.Chunk{
		{Text: "I'm Ada Lovelace, CTO. Launch moves to May.", SpeakerTag: "Speaker-0", IsFinal: true, Timestamp: time.Now()},
	})
	sess.Finish()

	log := keypoint.NewMemLog()
	dir := speaker.NewMemDirectory()

	application, err := app.New(
		context.Background(),
		testConfig(),
		&app.Providers{
			LLM: scriptedLLM(),
			STT: &sttmock.Provider{StartSession: sess},
		},
		app.WithKeypointLog(log),
		app.WithSpeakerDirectory(dir),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	// The scripted session is already finished, so Run drains and returns.
	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if got := log.Len(); got != 1 {
		t.Errorf("keypoint count = %d, want 1", got)
	}
	id, err := dir.GetBySpeakerTag(context.Background(), "Speaker-0")
	if err != nil {
		t.Fatalf("GetBySpeakerTag() returned error: %v", err)
	}
	if id == nil || id.DisplayName != "Ada Lovelace" {
		t.Errorf("speaker identity = %+v, want Ada Lovelace resolved", id)
	}
}

func TestRun_ForwardsAudio(t *testing.T) {
	t.Parallel()

	sess := sttmock.NewSession(nil)
	audio := bytes.NewReader([]byte("pcm-bytes"))

	application, err := app.New(
		context.Background(),
		testConfig(),
		&app.Providers{
			LLM: scriptedLLM(),
			STT: &sttmock.Provider{StartSession: sess},
		},
		app.WithKeypointLog(keypoint.NewMemLog()),
		app.WithSpeakerDirectory(speaker.NewMemDirectory()),
		app.WithAudioSource(audio),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- application.Run(context.Background()) }()

	// Wait for the forwarder to drain the source, then end the session.
	deadline := time.After(2 * time.Second)
	for len(sess.SentAudio()) == 0 {
		select {
		case <-deadline:
			t.Fatal("audio was never forwarded to the STT session")
		case <-time.After(10 * time.Millisecond):
		}
	}
	sess.Finish()

	if err := <-runDone; err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if got := string(sess.SentAudio()[0]); got != "pcm-bytes" {
		t.Errorf("forwarded audio = %q, want %q", got, "pcm-bytes")
	}
}

func TestShutdown_WritesReport(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Report.Path = filepath.Join(t.TempDir(), "minutes.xlsx")

	sess := sttmock.NewSession([]stt.Chunk{
		{Text: "Budget approved.", SpeakerTag: "Speaker-1", IsFinal: true, Timestamp: time.Now()},
	})
	sess.Finish()

	log := keypoint.NewMemLog()
	application, err := app.New(
		context.Background(),
		cfg,
		&app.Providers{
			LLM: scriptedLLM(),
			STT: &sttmock.Provider{StartSession: sess},
		},
		app.WithKeypointLog(log),
		app.WithSpeakerDirectory(speaker.NewMemDirectory()),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	if _, err := os.Stat(cfg.Report.Path); err != nil {
		t.Errorf("report workbook missing: %v", err)
	}

	// Second Shutdown is a no-op.
	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() returned error: %v", err)
	}
}
