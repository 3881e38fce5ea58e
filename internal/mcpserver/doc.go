// Package mcpserver exposes the conversion pipeline as Model Context Protocol
// tools so agents can submit recordings, follow runs and fetch drafts.
//
// The tools talk to a Backend, normally the daemon's IPC client, and return
// JSON text results. Service errors become tool errors rather than protocol
// failures so the calling model can read and react to them.
package mcpserver
