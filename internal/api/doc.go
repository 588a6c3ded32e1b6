// Package api defines the transport types shared by the daemon's HTTP API
// and its clients, plus the HTTP client the CLI uses to reach a running
// daemon.
package api
