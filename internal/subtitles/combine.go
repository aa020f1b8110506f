package subtitles

import (
	"math"
	"sort"
)

// ChunkResult is one chunk's provider output and where the chunk starts in
// the original audio.
type ChunkResult struct {
	Text          string
	OffsetSeconds float64
}

// Document is a combined transcript.
type Document struct {
	Entries []Entry
	// Text is the SRT rendering persisted as the transcript.
	Text string
	// Dropped counts cues discarded for unparseable timestamps.
	Dropped int
}

// Combine merges per-chunk SRT results into one document. Entry times are
// shifted by their chunk offset, stably sorted by start time, and renumbered
// from 1. A single chunk passes through unchanged: its raw text is kept and
// entries retain their original numbering and order.
func Combine(results []ChunkResult) Document {
	if len(results) == 0 {
		return Document{}
	}
	if len(results) == 1 {
		entries, dropped := Parse(results[0].Text)
		return Document{Entries: entries, Text: results[0].Text, Dropped: dropped}
	}

	var merged []Entry
	dropped := 0
	for _, result := range results {
		entries, n := Parse(result.Text)
		dropped += n
		for _, e := range entries {
			e.StartSeconds = roundMillis(e.StartSeconds + result.OffsetSeconds)
			e.EndSeconds = roundMillis(e.EndSeconds + result.OffsetSeconds)
			e.StartTime = FormatTimestamp(e.StartSeconds)
			e.EndTime = FormatTimestamp(e.EndSeconds)
			merged = append(merged, e)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartSeconds < merged[j].StartSeconds
	})
	for i := range merged {
		merged[i].SequenceID = i + 1
	}
	return Document{Entries: merged, Text: Format(merged), Dropped: dropped}
}

func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
