// Package subtitles parses, combines, and renders SRT transcripts.
//
// Combine is pure: chunk results in, one time-corrected document out.
// Malformed cues are dropped and counted rather than failing the file; the
// caller logs the count.
package subtitles
