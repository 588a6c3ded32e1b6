package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipforge/internal/clipplan"
	"clipforge/internal/config"
	"clipforge/internal/ledger"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/resolver"
	"clipforge/internal/services"
	"clipforge/internal/storage"
	"clipforge/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance
// execution via a file lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	ledger   *ledger.Ledger
	objects  storage.ObjectStore
	signer   *storage.Signer
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	api *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	QueueStats   map[string]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, books *ledger.Ledger, objects storage.ObjectStore, signer *storage.Signer, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || books == nil || objects == nil || signer == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, ledger, object store, signer, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipforged.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		ledger:   books,
		objects:  objects,
		signer:   signer,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager, and brings
// up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("clipforge daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipforge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the API server is listening on, or "" when the
// API is not running.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		converted := make(map[string]int, len(stats))
		for s, count := range stats {
			converted[string(s)] = count
		}
		status.QueueStats = converted
	}
	return status
}

// CreateJob validates and enqueues a clip assembly job.
func (d *Daemon) CreateJob(ctx context.Context, userID, source, objectKey, sourceURL string, clips []clipplan.Clip) (*queue.Job, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "create", "user id is required", nil)
	}
	if _, err := clipplan.Build(clipplan.ModeExplicit, clips, nil); err != nil {
		return nil, services.Wrap(services.ErrValidation, "api", "create", "clip list is not assemblable", err)
	}

	switch strings.TrimSpace(source) {
	case "upload":
		objectKey = strings.TrimSpace(objectKey)
		if objectKey == "" {
			return nil, services.Wrap(services.ErrValidation, "api", "create", "object key is required for uploads", nil)
		}
		if _, err := d.objects.Stat(ctx, objectKey); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, services.Wrap(services.ErrValidation, "api", "create",
					fmt.Sprintf("object %q not found in media store", objectKey), nil)
			}
			return nil, services.Wrap(services.ErrTransient, "api", "create", "media store lookup failed", err)
		}
		return d.store.NewUpload(ctx, userID, objectKey, clips)
	case "pending_upload":
		objectKey = strings.TrimSpace(objectKey)
		if objectKey == "" {
			return nil, services.Wrap(services.ErrValidation, "api", "create", "object key is required for pending uploads", nil)
		}
		return d.store.NewPendingUpload(ctx, userID, objectKey, clips)
	case "remote_url":
		if err := validateRemoteURL(sourceURL); err != nil {
			return nil, err
		}
		return d.store.NewRemoteDownload(ctx, userID, strings.TrimSpace(sourceURL), clips)
	default:
		return nil, services.Wrap(services.ErrValidation, "api", "create",
			fmt.Sprintf("unknown source %q", source), nil)
	}
}

// MarkUploaded confirms a pending upload and readies the job.
func (d *Daemon) MarkUploaded(ctx context.Context, userID, jobID string) (*queue.Job, error) {
	ok, err := d.store.MarkUploaded(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "mark-uploaded",
			"job is not awaiting an upload", nil)
	}
	return d.store.GetForUser(ctx, userID, jobID)
}

// GetJob fetches a job scoped to its owner. A nil job means not found.
func (d *Daemon) GetJob(ctx context.Context, userID, jobID string) (*queue.Job, error) {
	return d.store.GetForUser(ctx, userID, jobID)
}

// ListJobs returns jobs, scoped to one user when userID is set.
func (d *Daemon) ListJobs(ctx context.Context, userID string) ([]*queue.Job, error) {
	if strings.TrimSpace(userID) != "" {
		return d.store.ListForUser(ctx, userID)
	}
	return d.store.List(ctx)
}

// Generate runs the synchronous text-to-video flow.
func (d *Daemon) Generate(ctx context.Context, userID, text string) (*queue.Job, error) {
	return d.workflow.GenerateFromText(ctx, userID, text)
}

// SuggestBroll returns per-keyword stock footage candidates for the text
// without assembling anything.
func (d *Daemon) SuggestBroll(ctx context.Context, text string) ([]resolver.Candidate, error) {
	return d.workflow.SuggestBroll(ctx, text)
}

// Balance returns a user's credit balance.
func (d *Daemon) Balance(ctx context.Context, userID string) (int64, error) {
	return d.ledger.Balance(ctx, userID)
}

// AddCredits tops up a user's balance and returns the new total.
func (d *Daemon) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := d.ledger.Credit(ctx, userID, amount); err != nil {
		return 0, err
	}
	return d.ledger.Balance(ctx, userID)
}

// QueueHealth aggregates job counts by lifecycle state.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// RetryFailed readies failed jobs for another attempt.
func (d *Daemon) RetryFailed(ctx context.Context, ids []string) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// RemoveJob deletes a job record.
func (d *Daemon) RemoveJob(ctx context.Context, jobID string) (bool, error) {
	return d.store.Remove(ctx, jobID)
}

// ClearQueue removes job records for the given scope.
func (d *Daemon) ClearQueue(ctx context.Context, scope string) (int64, error) {
	switch strings.TrimSpace(scope) {
	case "", "all":
		return d.store.Clear(ctx)
	case "completed":
		return d.store.ClearComplete(ctx)
	case "failed":
		return d.store.ClearFailed(ctx)
	default:
		return 0, services.Wrap(services.ErrValidation, "api", "clear",
			fmt.Sprintf("unknown scope %q", scope), nil)
	}
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func validateRemoteURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return services.Wrap(services.ErrValidation, "api", "create", "source url is required", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return services.Wrap(services.ErrValidation, "api", "create", "source url is not valid", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return services.Wrap(services.ErrValidation, "api", "create",
			fmt.Sprintf("unsupported url scheme %q", parsed.Scheme), nil)
	}
	if parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "api", "create", "source url has no host", nil)
	}
	return nil
}
