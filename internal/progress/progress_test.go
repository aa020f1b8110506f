package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podsearch/internal/config"
)

func TestReporterWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New("host-1-abc", &buf).WithClock(func() time.Time { return fixed })
	r.Start("transcription started", map[string]any{"files": 3})
	r.Progress("file transcribed", map[string]any{"fileKey": "audio/show/a.mp3"})
	r.Error("file failed", errors.New("provider down"), nil)
	r.Complete("transcription finished", nil)

	var events []Event
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	wantTypes := []Type{TypeStart, TypeProgress, TypeError, TypeComplete}
	for i, ev := range events {
		if ev.Type != wantTypes[i] || ev.ProcessID != "host-1-abc" || !ev.Timestamp.Equal(fixed) {
			t.Fatalf("event %d unexpected: %+v", i, ev)
		}
	}
	if events[2].Data["error"] != "provider down" {
		t.Fatalf("error not recorded: %+v", events[2].Data)
	}
	if events[0].Data["files"].(float64) != 3 {
		t.Fatalf("data not recorded: %+v", events[0].Data)
	}
}

func TestNilReporterDiscards(t *testing.T) {
	var r *Reporter
	r.Start("x", nil)
	r.Error("x", errors.New("y"), nil)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewFromConfigTeesToFile(t *testing.T) {
	cfg := config.Default()
	cfg.Progress.File = filepath.Join(t.TempDir(), "logs", "progress.jsonl")
	var stdout bytes.Buffer
	r, err := NewFromConfig(&cfg, "p1", &stdout)
	if err != nil {
		t.Fatal(err)
	}
	r.Complete("done", nil)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.Progress.File)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stdout.String() || !strings.Contains(string(data), `"type":"COMPLETE"`) {
		t.Fatalf("file %q, stdout %q", data, stdout.String())
	}
}
