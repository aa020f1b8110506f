// Package logging assembles structured slog loggers and formatting helpers used
// across podsearch.
//
// It owns the console and JSON handlers, rotates file outputs through
// lumberjack, and exposes context-aware helpers so stage code can tag log
// lines with collections, file keys, stages, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
