// Package runlog keeps a local SQLite history of transcription and indexing
// runs for `podsearch history`. It is informational only; the pipeline never
// reads it back to decide what to do.
package runlog
