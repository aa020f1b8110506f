// Package progress emits machine-readable JSON-line events
// ({processId, timestamp, type, message, data}) so wrappers and dashboards can
// follow a run without parsing logs.
package progress
