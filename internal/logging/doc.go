// Package logging assembles structured slog loggers and formatting helpers used
// across podwatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so marker handling code can tag
// log lines with the marker path, discovery origin, and event ID. The package
// also provides a no-op logger for tests, a fan-out handler, and retention
// pruning for per-run log files.
package logging
