// Package logging assembles structured slog loggers and formatting helpers used
// across reelforge.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs, stages, and correlation IDs automatically. The console
// handler folds those fields into a short "Run 1a2b3c4d (voice)" subject.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
