package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/queue"
)

// HeartbeatMonitor keeps processing jobs visibly alive and fails jobs whose
// heartbeat has expired. A job that stops beating is never resumed; the
// owner retries it as a fresh attempt.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a heartbeat monitor for processing jobs.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= interval {
		timeout = 4 * interval
	}
	return &HeartbeatMonitor{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "heartbeat-monitor"),
		interval: interval,
		timeout:  timeout,
	}
}

// Interval returns the configured heartbeat update cadence.
func (h *HeartbeatMonitor) Interval() time.Duration {
	return h.interval
}

// Track updates the heartbeat for jobID until the returned stop function is
// called or ctx is cancelled.
func (h *HeartbeatMonitor) Track(ctx context.Context, jobID string) (stop func()) {
	trackCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-trackCtx.Done():
				return
			case <-ticker.C:
				if err := h.store.UpdateHeartbeat(trackCtx, jobID); err != nil && !errors.Is(err, context.Canceled) {
					h.logger.Warn("heartbeat update failed",
						logging.String(logging.FieldJobID, jobID),
						logging.Error(err),
						logging.String(logging.FieldEventType, "heartbeat_update_failed"),
					)
				}
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// SweepStale fails every processing job whose heartbeat predates the
// configured timeout.
func (h *HeartbeatMonitor) SweepStale(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-h.timeout)
	count, err := h.store.FailStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if count > 0 {
		h.logger.Warn("failed jobs with expired heartbeats",
			logging.Int64("count", count),
			logging.String(logging.FieldEventType, "stale_jobs_failed"),
			logging.String(logging.FieldErrorHint, "retry the jobs once the underlying stall is resolved"),
		)
	}
	return nil
}
