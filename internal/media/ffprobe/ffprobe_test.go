package ffprobe

import (
	"context"
	"errors"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio"}, {CodecType: "data"}},
		Format:  Format{Duration: "2100.5", Size: "31457280"},
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 2100.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 31457280 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToAudioStream(t *testing.T) {
	var gotArgs []string
	prober := NewProber("").WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"codec_type":"audio","duration":"61.25"}],"format":{"duration":""}}`), nil
	})

	d, err := prober.Duration(context.Background(), "/tmp/episode.mp3")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 61.25 {
		t.Fatalf("expected stream duration, got %v", d)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/episode.mp3" {
		t.Fatalf("path should be the last argument: %v", gotArgs)
	}
}

func TestDurationErrors(t *testing.T) {
	failing := NewProber("ffprobe").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	if _, err := failing.Duration(context.Background(), "x.mp3"); err == nil {
		t.Fatal("expected runner error")
	}

	empty := NewProber("ffprobe").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"streams":[],"format":{}}`), nil
	})
	if _, err := empty.Duration(context.Background(), "x.mp3"); err == nil {
		t.Fatal("expected missing duration error")
	}
	if _, err := empty.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}
