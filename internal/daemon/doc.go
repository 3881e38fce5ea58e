// Package daemon coordinates the long-running EchoPress process.
//
// It wires configuration, the run store, the pipeline orchestrator and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. At start the daemon fails runs that a previous process
// left mid-flight, then begins accepting submissions.
//
// The Daemon type is also the facade the IPC server calls into, so the HTTP
// and socket surfaces share one set of behaviours.
package daemon
