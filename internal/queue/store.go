package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/clipplan"
)

// NewUpload inserts a job whose source object has already been placed in the
// media store under objectKey. The job is immediately ready for processing.
func (s *Store) NewUpload(ctx context.Context, userID, objectKey string, clips []clipplan.Clip) (*Job, error) {
	return s.insertJob(ctx, userID, SourceUpload, objectKey, clips, StatusUploaded)
}

// NewPendingUpload inserts a job whose source object is still being uploaded.
// The client promotes it with MarkUploaded once the transfer finishes.
func (s *Store) NewPendingUpload(ctx context.Context, userID, objectKey string, clips []clipplan.Clip) (*Job, error) {
	return s.insertJob(ctx, userID, SourceUpload, objectKey, clips, StatusPendingUpload)
}

// NewRemoteDownload inserts a job whose source must first be fetched from a URL.
func (s *Store) NewRemoteDownload(ctx context.Context, userID, sourceURL string, clips []clipplan.Clip) (*Job, error) {
	return s.insertJob(ctx, userID, SourceRemoteURL, sourceURL, clips, StatusPendingDownload)
}

// NewGenerated inserts a job for the synchronous generate-from-text flow.
// The job starts directly in processing since the caller drives it to
// completion within the request.
func (s *Store) NewGenerated(ctx context.Context, userID, prompt string) (*Job, error) {
	return s.insertJob(ctx, userID, SourceGenerated, prompt, nil, StatusProcessing)
}

func (s *Store) insertJob(ctx context.Context, userID string, kind SourceKind, sourceRef string, clips []clipplan.Clip, status Status) (*Job, error) {
	clipsJSON, err := marshalClips(clips)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, user_id, source_kind, source_ref, clips_json, status,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		userID,
		kind,
		nullableString(sourceRef),
		nullableString(clipsJSON),
		status,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetForUser fetches a job by identifier scoped to its owner.
func (s *Store) GetForUser(ctx context.Context, userID, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job for user: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	clipsJSON, err := marshalClips(job.Clips)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	_, err = s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET user_id = ?, source_kind = ?, source_ref = ?, clips_json = ?, status = ?,
             output_key = ?, output_url = ?, link_expires_at = ?, error_message = ?,
             progress_stage = ?, progress_message = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		job.UserID,
		job.SourceKind,
		nullableString(job.SourceRef),
		nullableString(clipsJSON),
		job.Status,
		nullableString(job.OutputKey),
		nullableString(job.OutputURL),
		nullableTime(job.LinkExpiresAt),
		nullableString(job.ErrorMessage),
		nullableString(job.ProgressStage),
		nullableString(job.ProgressMessage),
		nullableTime(job.LastHeartbeat),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// MarkUploaded promotes a pending_upload job to uploaded once the client
// reports the source transfer finished. Returns false when the job was not
// awaiting an upload.
func (s *Store) MarkUploaded(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND user_id = ? AND status = ?`,
		StatusUploaded,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		userID,
		StatusPendingUpload,
	)
	if err != nil {
		return false, fmt.Errorf("mark uploaded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClaimForProcessing transitions a ready job to processing. The conditional
// update guarantees at most one worker wins the claim even with concurrent
// pollers. Returns false when another worker got there first or the job left
// a ready status.
func (s *Store) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, last_heartbeat = ?, error_message = NULL,
             progress_stage = 'Claimed', progress_message = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusProcessing,
		now,
		now,
		id,
		StatusUploaded,
		StatusPendingDownload,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ListForUser returns a user's jobs, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextForStatuses returns the oldest job matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// FailStuckProcessing fails jobs left in processing by an earlier daemon run.
// Attempts never resume mid-pipeline; the owner resubmits for a fresh run.
func (s *Store) FailStuckProcessing(ctx context.Context, reason string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, progress_stage = 'Failed',
             progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusFailed,
		reason,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailStaleProcessing fails processing jobs whose heartbeats expired before cutoff.
func (s *Store) FailStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, progress_stage = 'Failed',
             progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusFailed,
		StaleHeartbeatReason,
		StaleHeartbeatReason,
		now.Format(time.RFC3339Nano),
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to their ready status for reprocessing.
// Generated jobs are excluded: their inputs are resolved per attempt and the
// owner re-runs the generate flow instead.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	setClause := `
        SET status = CASE source_kind WHEN ? THEN ? ELSE ? END,
            progress_stage = 'Retry requested', progress_message = NULL,
            error_message = NULL, updated_at = ?`
	args := []any{
		SourceRemoteURL, StatusPendingDownload, StatusUploaded,
		time.Now().UTC().Format(time.RFC3339Nano),
	}

	var query string
	if len(ids) == 0 {
		query = `UPDATE jobs` + setClause + ` WHERE status = ? AND source_kind != ?`
		args = append(args, StatusFailed, SourceGenerated)
	} else {
		placeholders := makePlaceholders(len(ids))
		query = `UPDATE jobs` + setClause + ` WHERE id IN (` + placeholders + `) AND status = ? AND source_kind != ?`
		for _, id := range ids {
			args = append(args, id)
		}
		args = append(args, StatusFailed, SourceGenerated)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPendingUpload:
			health.Waiting += count
		case StatusUploaded, StatusPendingDownload:
			health.Ready += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusComplete:
			health.Complete += count
		}
	}
	return health, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearComplete removes only complete jobs.
func (s *Store) ClearComplete(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusComplete)
	if err != nil {
		return 0, fmt.Errorf("clear complete: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, user_id, source_kind, source_ref, clips_json, status, output_key, output_url, link_expires_at, error_message, progress_stage, progress_message, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		userID          string
		sourceKind      string
		sourceRef       sql.NullString
		clipsJSON       sql.NullString
		statusStr       string
		outputKey       sql.NullString
		outputURL       sql.NullString
		linkExpiresRaw  sql.NullString
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		heartbeatRaw    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&sourceKind,
		&sourceRef,
		&clipsJSON,
		&statusStr,
		&outputKey,
		&outputURL,
		&linkExpiresRaw,
		&errorMessage,
		&progressStage,
		&progressMessage,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		UserID:          userID,
		SourceKind:      SourceKind(sourceKind),
		SourceRef:       sourceRef.String,
		Status:          Status(statusStr),
		OutputKey:       outputKey.String,
		OutputURL:       outputURL.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressMessage: progressMessage.String,
	}

	if clipsJSON.Valid && clipsJSON.String != "" {
		if err := json.Unmarshal([]byte(clipsJSON.String), &job.Clips); err != nil {
			return nil, fmt.Errorf("decode clips for job %s: %w", id, err)
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	if linkExpiresRaw.Valid {
		if expiry, err := parseTimeString(linkExpiresRaw.String); err == nil {
			job.LinkExpiresAt = &expiry
		}
	}
	return job, nil
}

func marshalClips(clips []clipplan.Clip) (string, error) {
	if len(clips) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(clips)
	if err != nil {
		return "", fmt.Errorf("marshal clips: %w", err)
	}
	return string(encoded), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
