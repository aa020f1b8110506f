package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestTranscribeReadsSRTOutput(t *testing.T) {
	work := t.TempDir()
	audio := filepath.Join(t.TempDir(), "2024-01-01__ep.part000.mp3")
	if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	var captured []string
	svc := NewService(Config{WorkDir: work, Language: "EN"}).WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != UVXCommand {
			t.Fatalf("unexpected command %s", name)
		}
		captured = args
		out := argValue(args, "--output_dir")
		srt := "1\n00:00:00,000 --> 00:00:01,000\nhello\n"
		return nil, os.WriteFile(filepath.Join(out, "2024-01-01__ep.part000.srt"), []byte(srt), 0o644)
	})

	text, err := svc.Transcribe(context.Background(), audio, "Vocabulary: Kubernetes.", "srt")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !strings.Contains(text, "hello") {
		t.Fatalf("unexpected transcript %q", text)
	}
	if argValue(captured, "--initial_prompt") != "Vocabulary: Kubernetes." {
		t.Fatalf("prompt not forwarded: %v", captured)
	}
	if argValue(captured, "--language") != "en" || argValue(captured, "--output_format") != "srt" {
		t.Fatalf("unexpected args: %v", captured)
	}
	if !slices.Contains(captured, "--compute_type") {
		t.Fatal("cpu runs should set a compute type")
	}
	entries, _ := os.ReadDir(work)
	if len(entries) != 0 {
		t.Fatal("per-call output dir should be removed")
	}
}

func TestTranscribeCUDAArgs(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true, Model: "large-v3-turbo"})
	args := svc.buildArgs("in.mp3", "out", "")
	if argValue(args, "--device") != CUDADevice || argValue(args, "--model") != "large-v3-turbo" {
		t.Fatalf("unexpected args: %v", args)
	}
	if argValue(args, "--extra-index-url") != PypiIndexURL {
		t.Fatal("cuda runs need the pypi fallback index")
	}
	if slices.Contains(args, "--initial_prompt") {
		t.Fatal("empty prompt must not be forwarded")
	}
}

func TestTranscribeRejectsOtherFormats(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	_, err := svc.Transcribe(context.Background(), "x.mp3", "p", "verbose_json")
	var retryable interface{ Retryable() bool }
	if !errors.As(err, &retryable) || retryable.Retryable() {
		t.Fatalf("expected non-retryable format error, got %v", err)
	}
}

func TestTranscribeReportsContextCancellation(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "a.mp3")
	_ = os.WriteFile(audio, []byte("a"), 0o644)
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewService(Config{WorkDir: t.TempDir()}).WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		cancel()
		return []byte("signal: terminated"), errors.New("exit status 143")
	})
	_, err := svc.Transcribe(ctx, audio, "p", "srt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
