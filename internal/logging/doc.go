// Package logging assembles structured slog loggers and formatting helpers used
// across discstack.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stacking code can tag log
// lines with run IDs and frame numbers. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
