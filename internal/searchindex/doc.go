// Package searchindex is the in-memory full-text index over search entries.
//
// Text is tokenized with Unicode folding (NFKD, diacritics removed, case
// folded). Queries match documents containing every term and rank them with
// BM25; equal scores keep insertion order, so results are stable across a
// snapshot round trip.
package searchindex
