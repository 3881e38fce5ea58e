// Package preflight provides readiness checks for external services
// and filesystem paths that EchoPress depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup and reports CheckSystemDeps
//     in its status payload.
//   - The CLI "echopress check" command prints every result.
//
// Provider checks follow the configured transcription provider: WhisperX
// needs uvx and ffmpeg on PATH, the HTTP provider needs a reachable ASR
// endpoint.
package preflight
