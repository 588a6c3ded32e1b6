package queue

import (
	"strings"
	"time"

	"clipforge/internal/clipplan"
)

// Status represents the lifecycle of a job.
type Status string

const (
	// StatusPendingUpload means the job was registered but the client has
	// not yet signalled that the source upload finished. Not processable.
	StatusPendingUpload Status = "pending_upload"
	// StatusUploaded means the source object is in the media store and the
	// job is ready for processing.
	StatusUploaded Status = "uploaded"
	// StatusPendingDownload means the source must first be fetched from a
	// remote URL. Ready for processing.
	StatusPendingDownload Status = "pending_download"
	StatusProcessing      Status = "processing"
	StatusComplete        Status = "complete"
	StatusFailed          Status = "failed"
)

// SourceKind identifies where a job's source media comes from.
type SourceKind string

const (
	SourceUpload    SourceKind = "upload"
	SourceRemoteURL SourceKind = "remote_url"
	SourceGenerated SourceKind = "generated"
)

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// StaleHeartbeatReason is the error message set when a processing heartbeat expires.
const StaleHeartbeatReason = "Processing heartbeat expired"

var allStatuses = []Status{
	StatusPendingUpload,
	StatusUploaded,
	StatusPendingDownload,
	StatusProcessing,
	StatusComplete,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ReadyStatuses are the statuses from which a job may be claimed for processing.
func ReadyStatuses() []Status {
	return []Status{StatusUploaded, StatusPendingDownload}
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Waiting    int
	Ready      int
	Processing int
	Failed     int
	Complete   int
}

// Job represents a clip assembly job persisted in SQLite.
type Job struct {
	ID              string
	UserID          string
	SourceKind      SourceKind
	SourceRef       string // object key, remote URL, or prompt depending on kind
	Clips           []clipplan.Clip
	Status          Status
	OutputKey       string
	OutputURL       string
	LinkExpiresAt   *time.Time
	ErrorMessage    string
	ProgressStage   string
	ProgressMessage string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsReady reports whether a status may be claimed for processing.
func IsReady(status Status) bool {
	for _, ready := range ReadyStatuses() {
		if status == ready {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status is a final lifecycle state.
func IsTerminal(status Status) bool {
	return status == StatusComplete || status == StatusFailed
}

// SetProgress updates both progress fields together.
func (j *Job) SetProgress(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
}

// SetFailed marks the job as failed with the given error message.
// Clears the heartbeat and sets progress fields appropriately.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetComplete marks the job as complete with its published output.
func (j *Job) SetComplete(outputKey, outputURL string, expiresAt time.Time) {
	j.Status = StatusComplete
	j.OutputKey = outputKey
	j.OutputURL = outputURL
	expiry := expiresAt.UTC()
	j.LinkExpiresAt = &expiry
	j.ErrorMessage = ""
	j.LastHeartbeat = nil
	j.SetProgress("Complete", "Output published")
}
