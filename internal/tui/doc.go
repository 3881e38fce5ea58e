// Package tui renders a live terminal view of a single pipeline run.
//
// The model follows the daemon's server-sent event stream when the HTTP API
// is available and falls back to polling otherwise. It quits on its own once
// the run completes or fails.
package tui
