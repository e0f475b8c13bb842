package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minrelay/minrelay/internal/config"
)

const validYAML = `
server:
  metrics_addr: ":9090"
  log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  stt:
    name: deepgram
    api_key: dg-test
    model: nova-3
  embeddings:
    name: openai
    api_key: sk-test
    model: text-embedding-3-small
storage:
  postgres_dsn: postgres://localhost:5432/minrelay
  migrate: true
meeting:
  language: en
  sample_rate: 16000
  channels: 1
report:
  path: ./reports/
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("metrics_addr = %q", cfg.Server.MetricsAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	if cfg.Providers.STT.Name != "deepgram" {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if !cfg.Storage.Migrate {
		t.Error("storage.migrate = false, want true")
	}
	if cfg.Meeting.SampleRate != 16000 || cfg.Meeting.Channels != 1 {
		t.Errorf("meeting = %+v", cfg.Meeting)
	}
	if cfg.Report.Path != "./reports/" {
		t.Errorf("report.path = %q", cfg.Report.Path)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_port: 8080\n"))
	if err == nil {
		t.Fatal("LoadFromReader() should reject unknown fields")
	}
}

func TestLoadFromReader_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "server:\n  log_level: noisy\n"},
		{"negative sample rate", "meeting:\n  sample_rate: -1\n"},
		{"too many channels", "meeting:\n  channels: 3\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := config.LoadFromReader(strings.NewReader(tc.yaml)); err == nil {
				t.Errorf("LoadFromReader() accepted invalid config:\n%s", tc.yaml)
			}
		})
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("MINRELAY_TEST_KEY", "dg-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "providers:\n  stt:\n    name: deepgram\n    api_key: ${MINRELAY_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Providers.STT.APIKey != "dg-secret" {
		t.Errorf("api_key = %q, want the expanded env value", cfg.Providers.STT.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v should wrap os.ErrNotExist", err)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO"} {
		if l.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", l)
		}
	}
}
