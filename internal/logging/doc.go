// Package logging assembles structured slog loggers and formatting helpers used
// across seoforge.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so workflow and batch code can tag log
// lines with workflow, project, and page identifiers. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
