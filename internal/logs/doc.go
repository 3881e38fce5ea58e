// Package logs tails the daemon log file for `echopress logs` when the HTTP
// API is unreachable.
//
// Tail reads with bounded memory, treats a negative offset as "last N lines"
// and can block briefly in follow mode until new lines arrive. A run filter
// keeps only lines mentioning a given run id.
package logs
