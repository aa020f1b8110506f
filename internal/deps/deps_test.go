package deps

import (
	"os"
	"path/filepath"
	"testing"

	"podsearch/internal/config"
	"podsearch/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unconfigured command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("optional entries must not count as missing: %#v", missing)
	}
}

func TestRequirementsFollowProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Chunking.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"

	reqs := Requirements(cfg)
	if len(reqs) != 2 || reqs[0].Command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected openai requirements %#v", reqs)
	}

	cfg.Transcription.Provider = config.ProviderWhisperX
	reqs = Requirements(cfg)
	if len(reqs) != 3 || reqs[2].Name != "uvx" {
		t.Fatalf("whisperx should require uvx: %#v", reqs)
	}
}
