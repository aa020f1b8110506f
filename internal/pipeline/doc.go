// Package pipeline wires the transcription and indexing stages together.
//
// Transcribe walks a collection's audio, skips superseded downloads and files
// claimed in the shared lockfile, and for each remaining file plans chunks,
// calls the provider chunk by chunk, combines the subtitle output, applies
// spelling rules and stores the transcript. Index extracts search entries
// from transcripts (reusing cached entry documents), rebuilds the index from
// scratch and replaces the persisted file. Both stages always return a
// Summary, even when they fail or are interrupted.
package pipeline
