package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"clipforge/internal/storage"
)

func newStore(t *testing.T) *storage.Local {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	key := storage.UploadKey("user-1", "video.mp4")

	written, err := store.Put(ctx, key, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if written != int64(len("payload")) {
		t.Fatalf("unexpected written size: %d", written)
	}

	rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected payload: %q", data)
	}

	size, err := store.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if size != written {
		t.Fatalf("unexpected size: %d", size)
	}
}

func TestGetMissingObject(t *testing.T) {
	store := newStore(t)

	_, err := store.Get(context.Background(), "processed/user-1/missing.mp4")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	key := storage.ProcessedKey("user-1", "job-1")

	if _, err := store.Put(ctx, key, strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, key := range []string{"../outside.mp4", "/etc/passwd", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestKeyHelpers(t *testing.T) {
	if got := storage.ProcessedKey("u1", "j1"); got != "processed/u1/j1.mp4" {
		t.Fatalf("unexpected processed key: %s", got)
	}
	if got := storage.UploadKey("u1", "clip.mp4"); got != "uploads/u1/clip.mp4" {
		t.Fatalf("unexpected upload key: %s", got)
	}
	if got := storage.UploadKey("U 1", "my/clip?.mp4"); got != "uploads/u_1/my-clip.mp4" {
		t.Fatalf("unexpected sanitized upload key: %s", got)
	}
}
