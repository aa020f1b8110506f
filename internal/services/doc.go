// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp file keys, collections, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that sort failures into
//     configuration, transient, data-integrity, and storage categories.
//
// Provider and notification integrations live in subpackages (openai,
// whisperx, refresh) so each external dependency stays isolated and testable.
package services
