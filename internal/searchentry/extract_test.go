package searchentry

import (
	"errors"
	"testing"
	"time"

	"podsearch/internal/manifest"
	"podsearch/internal/services"
	"podsearch/internal/subtitles"
)

var ep = manifest.Entry{
	SequentialID: 42,
	FileKey:      "2024-01-01__ep",
	PublishedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
}

func TestExtractBuildsIDsAndTimestamps(t *testing.T) {
	entries := []subtitles.Entry{
		{SequenceID: 1, Text: "hello\nworld", StartSeconds: 1.2346, EndSeconds: 2.5},
		{SequenceID: 2, Text: "   ", StartSeconds: 3, EndSeconds: 4},
		{SequenceID: 3, Text: "bye", StartSeconds: 1050, EndSeconds: 1051.0004},
	}
	got := Extract(entries, ep)
	if len(got) != 2 {
		t.Fatalf("blank cue should be skipped, got %+v", got)
	}
	if got[0].ID != "42_1235" || got[0].Text != "hello world" || got[0].EndTimeMs != 2500 {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
	if got[1].ID != "42_1050000" || got[1].EndTimeMs != 1051000 {
		t.Fatalf("unexpected second entry %+v", got[1])
	}
	if got[0].EpisodePublishedUnixTimestamp != ep.PublishedAt.Unix() || got[0].SequentialEpisodeID != 42 {
		t.Fatalf("episode metadata missing: %+v", got[0])
	}
}

func TestExtractKeepsDuplicates(t *testing.T) {
	entries := []subtitles.Entry{
		{Text: "a", StartSeconds: 5},
		{Text: "b", StartSeconds: 5},
	}
	got := Extract(entries, ep)
	if len(got) != 2 || got[0].ID != got[1].ID {
		t.Fatalf("extractor must not dedupe: %+v", got)
	}
}

func TestExtractForMissingManifest(t *testing.T) {
	m := &manifest.Manifest{Collection: "show", Episodes: []manifest.Entry{ep}}
	if _, err := ExtractFor(nil, m, "2024-01-01__ep"); err != nil {
		t.Fatalf("known episode: %v", err)
	}
	_, err := ExtractFor(nil, m, "2024-02-02__unknown")
	if !errors.Is(err, ErrManifestMissing) || services.Classify(err) != services.CategoryDataIntegrity {
		t.Fatalf("expected manifest-missing data-integrity error, got %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil || string(data) != "[]" {
		t.Fatalf("empty entries should encode as [] got %s %v", data, err)
	}
	if _, err := Unmarshal([]byte("{")); !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected decode failure, got %v", err)
	}
}
