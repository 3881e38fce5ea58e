// Package api defines the wire-format types shared by the HTTP API, the IPC
// server and the CLI. It translates orchestrator and store models into
// transport-friendly DTOs so clients never depend on internal types.
//
// # Key Types
//
// Run: a run snapshot with progress, error taxonomy kind and log trail.
//
// SubmitRequest: the body of a submission; ToWorkflow converts it.
//
// OrchestratorStatus / DaemonStatus: runtime state, admission gate stats,
// stage health and dependency availability.
//
// LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// JSON tags are snake_case to match the persisted run snapshots. Timestamps
// use RFC3339 with milliseconds. Stage health is returned as a slice sorted
// by name so responses are deterministic.
package api
