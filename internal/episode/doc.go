// Package episode owns the storage key layout: audio file naming, the logical
// episode key shared by re-downloads, and the derived transcript, search-entry,
// index, manifest, and lockfile keys.
package episode
