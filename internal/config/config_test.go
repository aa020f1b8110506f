package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"podsearch/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "podsearch", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Storage.Root != filepath.Join(tempHome, ".local", "share", "podsearch", "store") {
		t.Fatalf("unexpected storage root: %q", cfg.Storage.Root)
	}
	if cfg.Transcription.APIKey != "sk-test" {
		t.Fatalf("expected API key from env, got %q", cfg.Transcription.APIKey)
	}
	if cfg.Transcription.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts by default, got %d", cfg.Transcription.MaxAttempts)
	}
	if cfg.Chunking.MaxSizeMB != 25 || cfg.Chunking.MaxDurationMinutes != 20 {
		t.Fatalf("unexpected chunk limits: %+v", cfg.Chunking)
	}
	if cfg.StaleLockAge().Hours() != 2 {
		t.Fatalf("expected 2h stale lock age, got %s", cfg.StaleLockAge())
	}
	if cfg.Index.Compression != config.CompressionZstd {
		t.Fatalf("unexpected default compression %q", cfg.Index.Compression)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	custom := config.Default()
	custom.Storage.Root = filepath.Join(dir, "store")
	custom.Transcription.Provider = "WhisperX"
	custom.Transcription.Model = ""
	custom.Transcription.Prompt = "  Kubernetes, gRPC  "
	custom.Index.Compression = "Brotli"
	custom.Index.BatchSize = 0

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Transcription.Provider != config.ProviderWhisperX {
		t.Fatalf("expected provider normalized to whisperx, got %q", cfg.Transcription.Provider)
	}
	if cfg.Transcription.Model != "large-v3" {
		t.Fatalf("expected whisperx model default, got %q", cfg.Transcription.Model)
	}
	if cfg.Transcription.Prompt != "Kubernetes, gRPC" {
		t.Fatalf("expected trimmed prompt, got %q", cfg.Transcription.Prompt)
	}
	if cfg.Index.Compression != config.CompressionBrotli {
		t.Fatalf("expected brotli compression, got %q", cfg.Index.Compression)
	}
	if cfg.Index.BatchSize != 500 {
		t.Fatalf("expected default batch size, got %d", cfg.Index.BatchSize)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[index]\ncompresion = \"gzip\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"supabase url", func(c *config.Config) { c.Storage.Backend = config.StorageSupabase }, "storage.url"},
		{"provider", func(c *config.Config) { c.Transcription.Provider = "azure" }, "transcription.provider"},
		{"format", func(c *config.Config) { c.Transcription.ResponseFormat = "vtt" }, "response_format"},
		{"compression", func(c *config.Config) { c.Index.Compression = "lz4" }, "index.compression"},
		{"refresh", func(c *config.Config) { c.Refresh.URL = "not a url" }, "refresh.url"},
		{"target", func(c *config.Config) { c.Chunking.TargetChunkMinutes = 45 }, "target_chunk_minutes"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Root = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRequireTranscription(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireTranscription(); err == nil || !strings.Contains(err.Error(), "prompt") {
		t.Fatalf("expected missing prompt error, got %v", err)
	}
	cfg.Transcription.Prompt = "episode vocabulary"
	if err := cfg.RequireTranscription(); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected missing api key error, got %v", err)
	}
	cfg.Transcription.Provider = config.ProviderWhisperX
	if err := cfg.RequireTranscription(); err != nil {
		t.Fatalf("whisperx needs no api key: %v", err)
	}
}

func TestCreateSampleWritesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected second CreateSample to refuse overwrite")
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load: exists=%v err=%v", exists, err)
	}
}
