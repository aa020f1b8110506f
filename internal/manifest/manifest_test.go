package manifest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"podsearch/internal/episode"
	"podsearch/internal/services"
	"podsearch/internal/testsupport"
)

func seedAudio(store *testsupport.MemoryStore, names ...string) {
	for _, name := range names {
		store.Put("audio/show/"+name, []byte("audio"))
	}
}

func TestSyncAssignsIDsInPublishOrder(t *testing.T) {
	store := testsupport.NewMemoryStore()
	seedAudio(store,
		"2024-02-01__second.mp3",
		"2024-01-01__first.mp3",
		"2024-01-01__first__20240301T120000Z.mp3",
		"notes.txt",
	)
	m, report, err := NewSyncer(store, nil, nil).Sync(context.Background(), "show")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Added != 2 || report.SkippedKey != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	first, ok := m.Lookup("2024-01-01__first")
	if !ok || first.SequentialID != 1 {
		t.Fatalf("first episode should get id 1: %+v", first)
	}
	second, _ := m.Lookup("2024-02-01__second")
	if second.SequentialID != 2 || !second.PublishedAt.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected second episode %+v", second)
	}

	loaded, found, err := Load(context.Background(), store, "show")
	if err != nil || !found || len(loaded.Episodes) != 2 {
		t.Fatalf("manifest should be persisted: %v %v %+v", err, found, loaded)
	}
}

func TestSyncPreservesExistingIDs(t *testing.T) {
	store := testsupport.NewMemoryStore()
	seedAudio(store, "2024-03-01__newer.mp3")
	existing := &Manifest{Collection: "show", Episodes: []Entry{
		{SequentialID: 7, FileKey: "2024-05-01__later-but-known", PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}}
	if err := Save(context.Background(), store, existing); err != nil {
		t.Fatal(err)
	}
	seedAudio(store, "2024-05-01__later-but-known.mp3")

	m, report, err := NewSyncer(store, nil, nil).Sync(context.Background(), "show")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Existing != 1 || report.Added != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	known, _ := m.Lookup("2024-05-01__later-but-known")
	added, _ := m.Lookup("2024-03-01__newer")
	if known.SequentialID != 7 || added.SequentialID != 8 {
		t.Fatalf("ids must be stable and appended: known=%d added=%d", known.SequentialID, added.SequentialID)
	}
}

func TestSyncWithoutChangesDoesNotWrite(t *testing.T) {
	store := testsupport.NewMemoryStore()
	seedAudio(store, "2024-01-01__only.mp3")
	syncer := NewSyncer(store, nil, nil)
	if _, _, err := syncer.Sync(context.Background(), "show"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := syncer.Sync(context.Background(), "show"); err != nil {
		t.Fatal(err)
	}
	if n := store.SaveCount(episode.ManifestKey("show")); n != 1 {
		t.Fatalf("expected a single manifest write, got %d", n)
	}
}

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Show</title>
<item><title>First!</title><pubDate>Mon, 01 Jan 2024 17:30:00 +0000</pubDate></item>
<item><title>Undated</title></item>
</channel></rss>`

func TestSyncUsesFeedPublishTimes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rssFixture)
	}))
	defer server.Close()

	store := testsupport.NewMemoryStore()
	seedAudio(store, "2024-01-01__first.mp3", "2024-01-02__undated.mp3")
	m, report, err := NewSyncer(store, NewRSSFeed(server.URL), nil).Sync(context.Background(), "show")
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.FromFeed != 1 {
		t.Fatalf("expected one feed match, got %+v", report)
	}
	first, _ := m.Lookup("2024-01-01__first")
	if !first.PublishedAt.Equal(time.Date(2024, 1, 1, 17, 30, 0, 0, time.UTC)) || first.Title != "First!" {
		t.Fatalf("feed time not applied: %+v", first)
	}
}

func TestSyncFeedFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := testsupport.NewMemoryStore()
	seedAudio(store, "2024-01-01__first.mp3")
	_, report, err := NewSyncer(store, NewRSSFeed(server.URL), nil).Sync(context.Background(), "show")
	if err != nil || report.Added != 1 || report.FromFeed != 0 {
		t.Fatalf("feed failure should not block sync: %v %+v", err, report)
	}
}

func TestLoadRejectsCorruptManifest(t *testing.T) {
	store := testsupport.NewMemoryStore()
	store.Put(episode.ManifestKey("show"), []byte("{nope"))
	if _, _, err := Load(context.Background(), store, "show"); !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data-integrity error, got %v", err)
	}
	m, found, err := Load(context.Background(), store, "other")
	if err != nil || found || len(m.Episodes) != 0 {
		t.Fatalf("missing manifest should load empty: %v %v", err, found)
	}
}
