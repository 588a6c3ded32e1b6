package testsupport

import (
	"context"
	"testing"

	"clipforge/internal/clipplan"
	"clipforge/internal/config"
	"clipforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewUploadJob creates a ready upload job for tests using the provided store.
func NewUploadJob(t testing.TB, store *queue.Store, userID, objectKey string, clips ...clipplan.Clip) *queue.Job {
	t.Helper()

	if len(clips) == 0 {
		clips = []clipplan.Clip{{Start: 0, End: 5}}
	}
	job, err := store.NewUpload(context.Background(), userID, objectKey, clips)
	if err != nil {
		t.Fatalf("store.NewUpload: %v", err)
	}
	return job
}
