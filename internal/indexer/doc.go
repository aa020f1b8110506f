// Package indexer builds a fresh search index from extracted entries.
//
// Every run starts from an empty index. Duplicate ids are a data defect: the
// index keeps the first occurrence, the builder counts the rest and logs the
// offending ids at error level, and the build carries on.
package indexer
