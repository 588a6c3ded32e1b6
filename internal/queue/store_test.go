package queue_test

import (
	"context"
	"testing"
	"time"

	"clipforge/internal/clipplan"
	"clipforge/internal/queue"
	"clipforge/internal/testsupport"
)

func TestNewUploadIsReadyImmediately(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job, err := store.NewUpload(context.Background(), "user-1", "uploads/user-1/video.mp4", []clipplan.Clip{{Start: 1, End: 4}})
	if err != nil {
		t.Fatalf("NewUpload failed: %v", err)
	}
	if job.Status != queue.StatusUploaded {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.ID == "" {
		t.Fatal("expected generated job id")
	}
	if len(job.Clips) != 1 || job.Clips[0].End != 4 {
		t.Fatalf("clips not persisted: %+v", job.Clips)
	}
}

func TestNewRemoteDownloadStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	job, err := store.NewRemoteDownload(context.Background(), "user-1", "https://example.com/video.mp4", []clipplan.Clip{{Start: 0, End: 2}})
	if err != nil {
		t.Fatalf("NewRemoteDownload failed: %v", err)
	}
	if job.Status != queue.StatusPendingDownload {
		t.Fatalf("unexpected status: %s", job.Status)
	}
	if job.SourceRef != "https://example.com/video.mp4" {
		t.Fatalf("unexpected source ref: %q", job.SourceRef)
	}
}

func TestMarkUploadedPromotesPendingUpload(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.NewPendingUpload(ctx, "user-1", "uploads/user-1/raw.mp4", []clipplan.Clip{{Start: 0, End: 2}})
	if err != nil {
		t.Fatalf("NewPendingUpload failed: %v", err)
	}

	ok, err := store.MarkUploaded(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("MarkUploaded failed: %v", err)
	}
	if !ok {
		t.Fatal("expected promotion to succeed")
	}

	// Repeat attempts and foreign owners are both no-ops.
	ok, err = store.MarkUploaded(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("second MarkUploaded failed: %v", err)
	}
	if ok {
		t.Fatal("expected repeat promotion to be a no-op")
	}
}

func TestClaimForProcessingWinsOnce(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")

	claimed, err := store.ClaimForProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to win")
	}

	claimed, err = store.ClaimForProcessing(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to lose")
	}

	refreshed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if refreshed.Status != queue.StatusProcessing {
		t.Fatalf("unexpected status after claim: %s", refreshed.Status)
	}
	if refreshed.LastHeartbeat == nil {
		t.Fatal("expected claim to seed a heartbeat")
	}
}

func TestGetForUserScopesOwnership(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")

	found, err := store.GetForUser(ctx, "user-2", job.ID)
	if err != nil {
		t.Fatalf("GetForUser failed: %v", err)
	}
	if found != nil {
		t.Fatal("expected foreign user lookup to return nothing")
	}

	found, err = store.GetForUser(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("GetForUser failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected owner lookup to succeed")
	}
}

func TestNextForStatusesReturnsOldestReady(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")
	testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/b.mp4")

	next, err := store.NextForStatuses(ctx, queue.ReadyStatuses()...)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job %s, got %+v", first.ID, next)
	}
}

func TestUpdatePersistsOutputFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")

	expiry := time.Now().Add(24 * time.Hour)
	job.SetComplete("processed/user-1/"+job.ID+".mp4", "http://127.0.0.1:7512/download/abc", expiry)
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	refreshed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if refreshed.Status != queue.StatusComplete {
		t.Fatalf("unexpected status: %s", refreshed.Status)
	}
	if refreshed.OutputKey != job.OutputKey || refreshed.OutputURL != job.OutputURL {
		t.Fatalf("output fields not persisted: %+v", refreshed)
	}
	if refreshed.LinkExpiresAt == nil {
		t.Fatal("expected link expiry to persist")
	}
}

func TestFailStuckProcessing(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")

	if _, err := store.ClaimForProcessing(ctx, job.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	count, err := store.FailStuckProcessing(ctx, queue.DaemonStopReason)
	if err != nil {
		t.Fatalf("FailStuckProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stuck job, got %d", count)
	}

	refreshed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if refreshed.Status != queue.StatusFailed {
		t.Fatalf("unexpected status: %s", refreshed.Status)
	}
	if refreshed.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected error message: %q", refreshed.ErrorMessage)
	}
}

func TestFailStaleProcessingHonorsCutoff(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")

	if _, err := store.ClaimForProcessing(ctx, job.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// Cutoff in the past: the fresh heartbeat survives.
	count, err := store.FailStaleProcessing(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no stale jobs, got %d", count)
	}

	count, err = store.FailStaleProcessing(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stale job, got %d", count)
	}
}

func TestRetryFailedRestoresReadyStatusPerKind(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	upload := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")
	remote, err := store.NewRemoteDownload(ctx, "user-1", "https://example.com/b.mp4", []clipplan.Clip{{Start: 0, End: 2}})
	if err != nil {
		t.Fatalf("NewRemoteDownload failed: %v", err)
	}
	generated, err := store.NewGenerated(ctx, "user-1", "a calm ocean sunrise")
	if err != nil {
		t.Fatalf("NewGenerated failed: %v", err)
	}

	for _, job := range []*queue.Job{upload, remote, generated} {
		job.SetFailed("boom")
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two retried jobs, got %d", count)
	}

	refreshedUpload, _ := store.GetByID(ctx, upload.ID)
	if refreshedUpload.Status != queue.StatusUploaded {
		t.Fatalf("upload retry status: %s", refreshedUpload.Status)
	}
	refreshedRemote, _ := store.GetByID(ctx, remote.ID)
	if refreshedRemote.Status != queue.StatusPendingDownload {
		t.Fatalf("remote retry status: %s", refreshedRemote.Status)
	}
	refreshedGenerated, _ := store.GetByID(ctx, generated.ID)
	if refreshedGenerated.Status != queue.StatusFailed {
		t.Fatalf("generated jobs must not be retried, got %s", refreshedGenerated.Status)
	}
}

func TestStatsAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/a.mp4")
	failed := testsupport.NewUploadJob(t, store, "user-1", "uploads/user-1/b.mp4")
	failed.SetFailed("boom")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusUploaded] != 1 || stats[queue.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	removed, err := store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one cleared job, got %d", removed)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 1 || health.Ready != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Pending_Download "); !ok || status != queue.StatusPendingDownload {
		t.Fatalf("unexpected parse result: %s %v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to fail parsing")
	}
}
