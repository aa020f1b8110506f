// Package metrics records transcription and indexing counters and exports
// them as a Prometheus textfile for node_exporter to pick up after each run.
package metrics
