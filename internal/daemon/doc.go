// Package daemon hosts the long-running clipforge process: the workflow
// manager, the HTTP API, and the single-instance file lock. The API serves
// job submission, the synchronous generate flow, credit management, queue
// administration, and signed download links.
package daemon
