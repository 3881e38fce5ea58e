// Package stage holds the contract shared by pipeline stage handlers and the
// readiness they report through Assess.
package stage
