// Package queue persists pipeline runs in SQLite.
//
// The Store holds run snapshots with their ordered log trail, transcription
// checkpoints keyed by recording identity, and finished drafts. The
// orchestrator writes a snapshot on every state transition so runs survive a
// daemon restart long enough to be reported as interrupted.
//
// The database is treated as working storage rather than a long-term archive.
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
