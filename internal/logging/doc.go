// Package logging assembles structured slog loggers and formatting helpers used
// across EchoPress.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with run IDs, recordings, stages, and correlation IDs. The
// StreamHub keeps a bounded tail of recent events for the daemon's log API.
package logging
