// Package queue persists clip assembly jobs in SQLite and provides the
// claim, progress, and lifecycle operations the workflow manager drives.
// Claims use a conditional update so a job is processed at most once even
// when several pollers race.
package queue
