package workflow

import (
	"context"
	"fmt"
	"strings"

	"clipforge/internal/clipplan"
	"clipforge/internal/logging"
	"clipforge/internal/media/ffprobe"
	"clipforge/internal/queue"
	"clipforge/internal/resolver"
	"clipforge/internal/services"
	"clipforge/internal/transcode"
	"clipforge/internal/workspace"
)

// GenerateFromText assembles a video from stock footage matched to the
// supplied text. The flow is synchronous: the caller blocks until the job
// reaches a terminal status, and the returned job reflects that status.
func (m *Manager) GenerateFromText(ctx context.Context, userID, text string) (*queue.Job, error) {
	if m.resolver == nil {
		return nil, services.Wrap(services.ErrConfiguration, "generate", "dispatch",
			"text generation requires keyword and stock footage credentials", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "generate", "dispatch", "text is required", nil)
	}
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, services.Wrap(services.ErrValidation, "generate", "dispatch", "user id is required", nil)
	}

	// Credits are checked before any job exists; a caller who cannot pay
	// never occupies the queue.
	enough, err := m.ledger.HasCredits(ctx, userID, m.cfg.Pipeline.CreditsPerGeneration)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "credits", "check", "credit balance lookup failed", err)
	}
	if !enough {
		return nil, services.Wrap(services.ErrInsufficientCredits, "credits", "check",
			fmt.Sprintf("generation requires %d credits", m.cfg.Pipeline.CreditsPerGeneration), nil)
	}

	job, err := m.store.NewGenerated(ctx, userID, text)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "generate", "enqueue", "generation job could not be created", err)
	}

	genCtx := services.WithJobID(ctx, job.ID)
	genCtx = services.WithUserID(genCtx, userID)
	if m.jobTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(genCtx, m.jobTimeout)
		defer cancel()
	}
	logger := logging.WithContext(genCtx, m.logger)
	logger.Info("generating video from text",
		logging.Int("text_length", len(text)),
		logging.String(logging.FieldEventType, "generation_started"),
	)

	stopHeartbeat := m.heartbeat.Track(genCtx, job.ID)
	keywords, genErr := m.runGeneration(genCtx, job, text)
	stopHeartbeat()

	if genErr != nil {
		m.handleJobFailure(genCtx, job, genErr)
		return job, genErr
	}

	logger.Info("generation complete",
		logging.String("output_key", job.OutputKey),
		logging.String(logging.FieldEventType, "generation_complete"),
	)
	if nerr := m.notifier.NotifyGenerationComplete(genCtx, job.ID, userID, keywords); nerr != nil {
		logger.Warn("generation notification failed", logging.Error(nerr))
	}
	return job, nil
}

// SuggestBroll returns the stock-footage candidates the text would resolve
// to, one per extracted keyword, without downloading or assembling anything.
func (m *Manager) SuggestBroll(ctx context.Context, text string) ([]resolver.Candidate, error) {
	if m.resolver == nil {
		return nil, services.Wrap(services.ErrConfiguration, "broll", "dispatch",
			"b-roll suggestions require keyword and stock footage credentials", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "broll", "dispatch", "text is required", nil)
	}
	return m.resolver.Suggest(ctx, text)
}

func (m *Manager) runGeneration(ctx context.Context, job *queue.Job, text string) ([]string, error) {
	m.setProgress(ctx, job, "Resolving", "Matching text to stock footage")
	resolution, err := m.resolver.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Acquire(m.cfg.Paths.StagingDir, job.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "workspace", "acquire", "workspace setup failed", err)
	}
	defer func() {
		if rerr := ws.Release(); rerr != nil {
			logging.WithContext(ctx, m.logger).Warn("workspace release failed", logging.Error(rerr))
		}
	}()

	m.setProgress(ctx, job, "Acquiring", fmt.Sprintf("Downloading %d stock clips", len(resolution.URLs)))
	inputs, err := m.acquirer.FanOut(ctx, resolution.URLs, ws.InputPath)
	if err != nil {
		return nil, err
	}

	m.setProgress(ctx, job, "Validating", "Inspecting stock footage")
	paths, durations := m.usableInputs(ctx, inputs)
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrNoUsableMedia, "validate", "probe", "no downloaded stock clip is usable", nil)
	}

	plan, err := clipplan.Build(clipplan.ModeWholeInputs, nil, durations)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "plan", "build", "stock footage could not be planned", err)
	}

	m.setProgress(ctx, job, "Assembling", "Joining stock clips")
	req := transcode.Request{
		Inputs:     paths,
		Plan:       plan,
		OutputPath: ws.OutputPath(),
	}
	if err := m.runner.Assemble(ctx, req, m.progressRecorder(ctx, job)); err != nil {
		return nil, err
	}

	m.setProgress(ctx, job, "Publishing", "Uploading generated video")
	result, err := m.publisher.Publish(ctx, job.UserID, job.ID, ws.OutputPath())
	if err != nil {
		return nil, err
	}

	job.SetComplete(result.Key, result.URL, result.ExpiresAt)
	if err := m.persistJob(job); err != nil {
		return nil, services.Wrap(services.ErrTransient, "publish", "persist", "completed job could not be saved", err)
	}

	m.settleCharge(job.UserID, job.ID, m.cfg.Pipeline.CreditsPerGeneration, "generation")
	return resolution.Keywords, nil
}

// usableInputs probes downloaded stock clips and keeps the ones carrying a
// video stream with a known duration, preserving download order.
func (m *Manager) usableInputs(ctx context.Context, inputs []string) (paths []string, durations []float64) {
	logger := logging.WithContext(ctx, m.logger)
	for _, path := range inputs {
		probe, err := ffprobe.Inspect(ctx, m.cfg.Pipeline.FFprobeBinary, path)
		if err != nil {
			logger.Warn("dropping unreadable stock clip", logging.String("path", path), logging.Error(err))
			continue
		}
		if !probe.HasVideo() || probe.DurationSeconds() <= 0 {
			logger.Warn("dropping stock clip without usable video", logging.String("path", path))
			continue
		}
		paths = append(paths, path)
		durations = append(durations, probe.DurationSeconds())
	}
	return paths, durations
}
