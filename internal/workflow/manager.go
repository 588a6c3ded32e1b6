package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/acquire"
	"clipforge/internal/config"
	"clipforge/internal/ledger"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/publish"
	"clipforge/internal/queue"
	"clipforge/internal/resolver"
	"clipforge/internal/transcode"
)

// Manager polls the job store for ready jobs and drives each one through
// the assembly pipeline: acquire, plan, transcode, publish, debit.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	ledger    *ledger.Ledger
	acquirer  *acquire.Acquirer
	runner    *transcode.Runner
	publisher *publish.Publisher
	resolver  *resolver.Resolver
	notifier  notifications.Service
	logger    *slog.Logger

	pollInterval time.Duration
	jobTimeout   time.Duration
	heartbeat    *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Deps bundles the collaborators a Manager drives.
type Deps struct {
	Store     *queue.Store
	Ledger    *ledger.Ledger
	Acquirer  *acquire.Acquirer
	Runner    *transcode.Runner
	Publisher *publish.Publisher
	// Resolver is optional; without it the generate-from-text flow reports
	// a configuration error.
	Resolver *resolver.Resolver
	Notifier notifications.Service
	Logger   *slog.Logger
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("workflow manager requires configuration")
	}
	if deps.Store == nil || deps.Ledger == nil || deps.Acquirer == nil || deps.Runner == nil || deps.Publisher == nil {
		return nil, errors.New("workflow manager requires store, ledger, acquirer, runner, and publisher")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Manager{
		cfg:          cfg,
		store:        deps.Store,
		ledger:       deps.Ledger,
		acquirer:     deps.Acquirer,
		runner:       deps.Runner,
		publisher:    deps.Publisher,
		resolver:     deps.Resolver,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		jobTimeout:   time.Duration(cfg.Workflow.JobTimeout) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			deps.Store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}, nil
}

// Start begins background processing. Jobs left in processing by an earlier
// run are failed first: attempts never resume mid-pipeline.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	if count, err := m.store.FailStuckProcessing(runCtx, queue.DaemonStopReason); err != nil {
		m.logger.Warn("failed to recover interrupted jobs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "startup_recovery_failed"),
		)
	} else if count > 0 {
		m.logger.Info("failed interrupted jobs from previous run", logging.Int64("count", count))
	}

	go m.runLoop(runCtx)
	go m.maintenanceLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether background processing is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.NextForStatuses(ctx, queue.ReadyStatuses()...)
		if err != nil {
			m.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		claimed, err := m.store.ClaimForProcessing(ctx, job.ID)
		if err != nil {
			m.logger.Error("failed to claim job",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
			)
			m.waitOrShutdown(ctx, time.Duration(m.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if !claimed {
			// Another poller won, or the job left a ready status.
			continue
		}
		job.Status = queue.StatusProcessing

		m.processJob(ctx, job)
	}
}

func (m *Manager) maintenanceLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := m.heartbeat.Interval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	workspaceSweep := time.NewTicker(time.Hour)
	defer workspaceSweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.SweepStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("stale job sweep failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check job database access"),
				)
			}
		case <-workspaceSweep.C:
			m.sweepWorkspaces(ctx)
		}
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, delay time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
