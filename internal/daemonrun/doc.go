// Package daemonrun hosts the long-running daemon process: logger setup, pid
// file, provider construction, IPC listener and signal handling.
package daemonrun
