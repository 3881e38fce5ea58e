// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI and the MCP bridge.
//
// Request and response types reuse the api package DTOs so the socket and
// HTTP surfaces describe runs identically. Errors cross the wire as strings;
// callers that need the error kind read it from the message prefix.
package ipc
