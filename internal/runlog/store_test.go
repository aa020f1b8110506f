package runlog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"podsearch/internal/runlog"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, c := range []string{"talkshow", "other", "talkshow"} {
		_, err := store.Record(ctx, runlog.Run{
			RunID:      "run-" + string(rune('a'+i)),
			Stage:      "transcribe",
			Collection: c,
			Status:     "completed",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + 90*time.Second),
			Processed:  i + 1,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	runs, err := store.Recent(ctx, "talkshow", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-c" || runs[1].RunID != "run-a" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].Duration() != 90*time.Second || runs[0].Processed != 3 {
		t.Fatalf("fields not round-tripped: %+v", runs[0])
	}

	all, err := store.Recent(ctx, "", 2)
	if err != nil || len(all) != 2 {
		t.Fatalf("limit not applied: %d %v", len(all), err)
	}
}

func TestRecordRequiresRunID(t *testing.T) {
	if _, err := openStore(t).Record(context.Background(), runlog.Run{Stage: "index"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	old := time.Now().Add(-48 * time.Hour)
	for i, started := range []time.Time{old, time.Now()} {
		if _, err := store.Record(ctx, runlog.Run{RunID: string(rune('x' + i)), Stage: "index", Collection: "c", Status: "completed", StartedAt: started, FinishedAt: started}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runlog.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if _, err := store.Record(context.Background(), runlog.Run{RunID: "r1", Stage: "index", Collection: "c", Status: "completed", StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	again, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	runs, err := again.Recent(context.Background(), "c", 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("history lost: %v %v", runs, err)
	}
}
