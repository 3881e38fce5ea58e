// Command echopress is the client for the EchoPress daemon. It submits
// recordings, follows runs, prints drafts and manages the daemon process.
//
// Most commands talk to the daemon over its unix socket; `logs` and `watch`
// prefer the HTTP API when it is enabled.
package main
