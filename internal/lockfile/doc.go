// Package lockfile coordinates transcription workers through a shared JSON
// lockfile in the blob store.
//
// The lockfile is advisory. Reads fail open (a missing or corrupt file is
// treated as empty), writes bump a version counter, and stale entries are
// pruned at the start of each transcription run. An optional flock guard
// narrows the read-modify-write window for workers on the same host.
package lockfile
