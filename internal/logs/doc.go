// Package logs tails the daemon log file with bounded memory usage. It
// supports negative offsets for "last N lines" reads and a follow mode that
// powers `clipforge logs --follow`.
package logs
