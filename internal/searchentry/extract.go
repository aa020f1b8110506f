package searchentry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"podsearch/internal/manifest"
	"podsearch/internal/services"
	"podsearch/internal/subtitles"
)

// ErrManifestMissing reports a transcript whose episode is not registered in
// the collection manifest. The file is skipped.
var ErrManifestMissing = fmt.Errorf("%w: episode missing from manifest", services.ErrDataIntegrity)

// Entry is one indexable utterance.
type Entry struct {
	ID                            string `json:"id"`
	Text                          string `json:"text"`
	SequentialEpisodeID           int    `json:"sequentialEpisodeId"`
	StartTimeMs                   int64  `json:"startTimeMs"`
	EndTimeMs                     int64  `json:"endTimeMs"`
	EpisodePublishedUnixTimestamp int64  `json:"episodePublishedUnixTimestamp"`
}

// Extract converts subtitle entries into search entries for one episode.
// Cues with blank text are skipped; duplicates are left for the index
// builder to report.
func Extract(entries []subtitles.Entry, episode manifest.Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	published := episode.PublishedAt.Unix()
	for _, e := range entries {
		text := strings.Join(strings.Fields(e.Text), " ")
		if text == "" {
			continue
		}
		start := secondsToMillis(e.StartSeconds)
		out = append(out, Entry{
			ID:                            FormatID(episode.SequentialID, start),
			Text:                          text,
			SequentialEpisodeID:           episode.SequentialID,
			StartTimeMs:                   start,
			EndTimeMs:                     secondsToMillis(e.EndSeconds),
			EpisodePublishedUnixTimestamp: published,
		})
	}
	return out
}

// ExtractFor resolves the manifest entry for episodeKey and extracts.
func ExtractFor(entries []subtitles.Entry, m *manifest.Manifest, episodeKey string) ([]Entry, error) {
	ep, ok := m.Lookup(episodeKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrManifestMissing, episodeKey)
	}
	return Extract(entries, ep), nil
}

// FormatID builds the {episodeId}_{startTimeMs} identifier.
func FormatID(episodeID int, startMs int64) string {
	return fmt.Sprintf("%d_%d", episodeID, startMs)
}

func secondsToMillis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// Marshal encodes entries as the cached search-entries document.
func Marshal(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

// Unmarshal decodes a cached search-entries document.
func Unmarshal(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "searchentry", "decode", "cached entries", err)
	}
	return entries, nil
}
