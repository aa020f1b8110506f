// Package manifest maintains the per-collection episode registry that gives
// every logical episode a stable sequential id.
//
// Sync only ever appends. Re-downloads of an episode share its id because
// entries are keyed by episode key, not by the stamped file name.
package manifest
