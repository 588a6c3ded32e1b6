package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipforge/internal/clipplan"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/queue"
	"clipforge/internal/services"
	"clipforge/internal/transcode"
	"clipforge/internal/workspace"
)

const persistTimeout = 5 * time.Second

// processJob drives one claimed job to a terminal status. The job context
// carries the configured timeout; expiry fails the job rather than leaving
// it processing.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithUserID(jobCtx, job.UserID)
	if m.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, m.jobTimeout)
		defer cancel()
	}

	logger := logging.WithContext(jobCtx, m.logger)
	logger.Info("processing job",
		logging.String("source_kind", string(job.SourceKind)),
		logging.String(logging.FieldEventType, "job_started"),
	)

	stopHeartbeat := m.heartbeat.Track(jobCtx, job.ID)
	err := m.runPipeline(jobCtx, job)
	stopHeartbeat()

	if err != nil {
		m.handleJobFailure(jobCtx, job, err)
		return
	}

	logger.Info("job complete",
		logging.String("output_key", job.OutputKey),
		logging.String(logging.FieldEventType, "job_complete"),
	)
	if nerr := m.notifier.NotifyJobComplete(jobCtx, job.ID, job.UserID, job.OutputURL); nerr != nil {
		logger.Warn("completion notification failed", logging.Error(nerr))
	}
}

// runPipeline drives a claimed job through acquire, plan, transcode, and
// publish. Credits are settled only after a successful publish; a user who
// cannot pay still receives the clip and the debit lands unsettled.
func (m *Manager) runPipeline(ctx context.Context, job *queue.Job) error {
	ws, err := workspace.Acquire(m.cfg.Paths.StagingDir, job.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "workspace", "acquire", "workspace setup failed", err)
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			logging.WithContext(ctx, m.logger).Warn("workspace release failed", logging.Error(rerr))
		}
	}()

	m.setProgress(ctx, job, "Acquiring", "Fetching source media")
	inputPath := ws.InputPath(0)
	switch job.SourceKind {
	case queue.SourceUpload:
		if err := m.acquirer.FromStore(ctx, job.SourceRef, inputPath); err != nil {
			return err
		}
	case queue.SourceRemoteURL:
		if err := m.acquirer.FromURL(ctx, job.SourceRef, inputPath); err != nil {
			return err
		}
	default:
		return services.Wrap(services.ErrValidation, "acquire", "dispatch",
			fmt.Sprintf("source kind %q cannot be assembled from the queue", job.SourceKind), nil)
	}

	m.setProgress(ctx, job, "Validating", "Inspecting source media")
	probe, err := ffprobe.Inspect(ctx, m.cfg.Pipeline.FFprobeBinary, inputPath)
	if err != nil {
		return services.Wrap(services.ErrTranscode, "validate", "probe", "source media could not be inspected", err)
	}
	if !probe.HasVideo() {
		return services.Wrap(services.ErrTranscode, "validate", "probe", "source has no video stream", nil)
	}

	plan, err := clipplan.Build(clipplan.ModeExplicit, job.Clips, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "plan", "build", "clip list is not assemblable", err)
	}

	m.setProgress(ctx, job, "Assembling", "Trimming and joining clips")
	req := transcode.Request{
		Inputs:     []string{inputPath},
		Plan:       plan,
		OutputPath: ws.OutputPath(),
	}
	if err := m.runner.Assemble(ctx, req, m.progressRecorder(ctx, job)); err != nil {
		return err
	}

	m.setProgress(ctx, job, "Publishing", "Uploading assembled clip")
	result, err := m.publisher.Publish(ctx, job.UserID, job.ID, ws.OutputPath())
	if err != nil {
		return err
	}

	job.SetComplete(result.Key, result.URL, result.ExpiresAt)
	if err := m.persistJob(job); err != nil {
		return services.Wrap(services.ErrTransient, "publish", "persist", "completed job could not be saved", err)
	}

	m.settleCharge(job.UserID, job.ID, m.cfg.Pipeline.CreditsPerJob, "assembly")
	return nil
}

// settleCharge debits the user after a successful publish. The clip stays
// published even when the charge fails; the debit is recorded unsettled for
// later reconciliation.
func (m *Manager) settleCharge(userID, jobID string, amount int64, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := m.ledger.Debit(ctx, userID, jobID, amount, reason); err != nil {
		m.logger.Warn("post-publish charge failed; recording unsettled debit",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldUserID, userID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "charge_unsettled"),
			logging.String(logging.FieldErrorHint, "reconcile the ledger's unsettled debits"),
		)
		if rerr := m.ledger.RecordUnsettled(ctx, userID, jobID, amount, reason); rerr != nil {
			m.logger.Error("unsettled debit could not be recorded",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(rerr),
			)
		}
	}
}

func (m *Manager) handleJobFailure(ctx context.Context, job *queue.Job, failure error) {
	message := services.Message(failure)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(failure, services.ErrTimeout) {
		message = fmt.Sprintf("Job timed out after %s", m.jobTimeout)
	}

	logging.WithContext(ctx, m.logger).Error("job failed",
		logging.Error(failure),
		logging.String(logging.FieldEventType, "job_failed"),
	)

	job.SetFailed(message)
	if err := m.persistJob(job); err != nil {
		m.logger.Error("failed job could not be persisted",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
	}

	notifyCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.notifier.NotifyJobFailed(notifyCtx, job.ID, job.UserID, message); err != nil {
		m.logger.Warn("failure notification failed", logging.Error(err))
	}
}

// persistJob saves job state on a fresh context so a cancelled or expired
// job context cannot prevent the terminal status from landing.
func (m *Manager) persistJob(job *queue.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return m.store.Update(ctx, job)
}

func (m *Manager) setProgress(ctx context.Context, job *queue.Job, stage, message string) {
	job.SetProgress(stage, message)
	if err := m.store.Update(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
		logging.WithContext(ctx, m.logger).Warn("progress update failed", logging.Error(err))
	}
}

// progressRecorder persists transcode progress, throttled to meaningful
// changes so SQLite is not hammered on every stderr line.
func (m *Manager) progressRecorder(ctx context.Context, job *queue.Job) func(transcode.ProgressUpdate) {
	lastPercent := -5.0
	return func(update transcode.ProgressUpdate) {
		if update.Percent < lastPercent+5 {
			return
		}
		lastPercent = update.Percent
		m.setProgress(ctx, job, "Assembling", update.Message)
	}
}

func (m *Manager) sweepWorkspaces(ctx context.Context) {
	maxAge := time.Duration(m.cfg.Workflow.StaleWorkspaceAge) * time.Second
	if maxAge <= 0 {
		return
	}
	result := workspace.CleanStale(ctx, m.cfg.Paths.StagingDir, maxAge, m.logger)
	if len(result.Removed) > 0 {
		m.logger.Info("removed stale workspaces", logging.Int("count", len(result.Removed)))
	}
}
