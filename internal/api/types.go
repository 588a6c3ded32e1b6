package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ClipRange is a half-open [start, end) window in source seconds.
type ClipRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// JobProgress captures pipeline progress for a job.
type JobProgress struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	SourceKind    string      `json:"sourceKind"`
	SourceRef     string      `json:"sourceRef,omitempty"`
	Clips         []ClipRange `json:"clips,omitempty"`
	Status        string      `json:"status"`
	Progress      JobProgress `json:"progress"`
	OutputKey     string      `json:"outputKey,omitempty"`
	DownloadURL   string      `json:"downloadUrl,omitempty"`
	LinkExpiresAt string      `json:"linkExpiresAt,omitempty"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	UpdatedAt     string      `json:"updatedAt,omitempty"`
}

// CreateJobRequest submits a new clip assembly job.
type CreateJobRequest struct {
	UserID string `json:"userId"`
	// Source selects where the media comes from: "upload" for an object
	// already in the media store, "pending_upload" for an upload the client
	// will complete later, or "remote_url" for a fetchable video URL.
	Source    string      `json:"source"`
	ObjectKey string      `json:"objectKey,omitempty"`
	SourceURL string      `json:"sourceUrl,omitempty"`
	Clips     []ClipRange `json:"clips"`
}

// MarkUploadedRequest confirms a pending upload finished.
type MarkUploadedRequest struct {
	UserID string `json:"userId"`
}

// GenerateRequest submits a synchronous text-to-video generation.
type GenerateRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// BrollRequest asks for stock footage candidates matching the text.
type BrollRequest struct {
	Text string `json:"text"`
}

// BrollCandidate pairs an extracted keyword with the footage URL found for
// it; the URL is empty when nothing usable turned up.
type BrollCandidate struct {
	Keyword string `json:"keyword"`
	URL     string `json:"url,omitempty"`
}

// BrollResponse lists candidates in keyword order.
type BrollResponse struct {
	Candidates []BrollCandidate `json:"candidates"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// CreditsResponse reports a user's credit balance.
type CreditsResponse struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

// AddCreditsRequest tops up a user's balance.
type AddCreditsRequest struct {
	Amount int64 `json:"amount"`
}

// RetryRequest resubmits failed jobs.
type RetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

// QueueHealthResponse aggregates job counts by lifecycle state.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Waiting    int `json:"waiting"`
	Ready      int `json:"ready"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Complete   int `json:"complete"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	QueueStats   map[string]int `json:"queueStats"`
}

// TestNotificationResponse reports the outcome of a notification test.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
