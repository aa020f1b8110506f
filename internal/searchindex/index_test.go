package searchindex

import (
	"errors"
	"reflect"
	"testing"

	"podsearch/internal/searchentry"
	"podsearch/internal/services"
)

func entry(id, text string) searchentry.Entry {
	return searchentry.Entry{ID: id, Text: text}
}

func TestTokenizeFoldsCaseAndDiacritics(t *testing.T) {
	got := Tokenize("Crème BRÛLÉE, ﬁne-tuning Straße 42!")
	want := []string{"creme", "brulee", "fine", "tuning", "strasse", "42"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
}

func TestInsertRejectsDuplicates(t *testing.T) {
	ix := New()
	if err := ix.Insert(entry("1_0", "first")); err != nil {
		t.Fatal(err)
	}
	err := ix.Insert(entry("1_0", "second"))
	if !errors.Is(err, ErrDuplicateID) || !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	got, _ := ix.Get("1_0")
	if got.Text != "first" || ix.Len() != 1 {
		t.Fatal("duplicate must not overwrite the original")
	}

	inserted, dupes := ix.InsertBatch([]searchentry.Entry{entry("1_1", "a"), entry("1_0", "b"), entry("1_2", "c")})
	if inserted != 2 || len(dupes) != 1 || dupes[0] != "1_0" {
		t.Fatalf("InsertBatch = %d, %v", inserted, dupes)
	}
}

func TestSearchRequiresAllTerms(t *testing.T) {
	ix := New()
	ix.InsertBatch([]searchentry.Entry{
		entry("1_0", "kubernetes operators in production"),
		entry("1_1", "operators and more operators"),
		entry("1_2", "Kubernetes at scale"),
	})
	hits := ix.Search("kubernetes operators", 0)
	if len(hits) != 1 || hits[0].Entry.ID != "1_0" {
		t.Fatalf("AND query should match only 1_0: %+v", hits)
	}
	if hits := ix.Search("kubernetes missingterm", 0); hits != nil {
		t.Fatalf("unknown term should match nothing: %+v", hits)
	}
	if hits := ix.Search("  !! ", 0); hits != nil {
		t.Fatal("empty query should match nothing")
	}
}

func TestSearchRanksByBM25WithStableTies(t *testing.T) {
	ix := New()
	ix.InsertBatch([]searchentry.Entry{
		entry("a", "go go go"),
		entry("b", "go is a language with a long description attached"),
		entry("c", "go go go"),
		entry("d", "unrelated"),
	})
	hits := ix.Search("GO", 0)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %+v", hits)
	}
	if hits[0].Entry.ID != "a" || hits[1].Entry.ID != "c" || hits[2].Entry.ID != "b" {
		t.Fatalf("unexpected ranking %v %v %v", hits[0].Entry.ID, hits[1].Entry.ID, hits[2].Entry.ID)
	}
	if hits[0].Score != hits[1].Score || hits[1].Score <= hits[2].Score {
		t.Fatalf("unexpected scores %+v", hits)
	}
	if limited := ix.Search("go", 1); len(limited) != 1 || limited[0].Entry.ID != "a" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestSnapshotRoundTripPreservesResults(t *testing.T) {
	ix := New()
	ix.InsertBatch([]searchentry.Entry{
		{ID: "1_0", Text: "café culture", SequentialEpisodeID: 1, StartTimeMs: 0, EndTimeMs: 900},
		{ID: "1_900", Text: "cafe society", SequentialEpisodeID: 1, StartTimeMs: 900, EndTimeMs: 1800},
		{ID: "2_0", Text: "tea culture", SequentialEpisodeID: 2},
	})
	restored, err := FromSnapshot(ix.Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	for _, q := range []string{"cafe", "culture", "CAFÉ culture"} {
		if !reflect.DeepEqual(ix.Search(q, 0), restored.Search(q, 0)) {
			t.Fatalf("query %q differs after round trip", q)
		}
	}
	if restored.Terms() != ix.Terms() {
		t.Fatalf("term count changed: %d vs %d", restored.Terms(), ix.Terms())
	}

	bad := Snapshot{Version: SnapshotVersion, Documents: []searchentry.Entry{entry("x", "a"), entry("x", "b")}}
	if _, err := FromSnapshot(bad); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if _, err := FromSnapshot(Snapshot{Version: 99}); err == nil {
		t.Fatal("expected version error")
	}
}
