package workspace_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/testsupport"
	"clipforge/internal/workspace"
)

func TestAcquireAndRelease(t *testing.T) {
	root := t.TempDir()

	ws, err := workspace.Acquire(root, "abc-123")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Dir()), "job-abc-123-") {
		t.Fatalf("unexpected workspace dir: %s", ws.Dir())
	}
	if _, err := os.Stat(ws.Dir()); err != nil {
		t.Fatalf("workspace dir missing: %v", err)
	}

	testsupport.WriteFile(t, ws.InputPath(0), 64)
	testsupport.WriteFile(t, ws.OutputPath(), 64)

	if err := ws.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatalf("expected workspace to be removed, got %v", err)
	}
}

func TestAcquireIsFreshPerAttempt(t *testing.T) {
	root := t.TempDir()

	first, err := workspace.Acquire(root, "abc-123")
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	testsupport.WriteFile(t, first.InputPath(0), 64)

	// A retry after a crashed attempt must not see the earlier attempt's
	// partial files, so the first workspace is deliberately not released.
	second, err := workspace.Acquire(root, "abc-123")
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if second.Dir() == first.Dir() {
		t.Fatalf("retry reused workspace %s", first.Dir())
	}
	if _, err := os.Stat(second.InputPath(0)); !os.IsNotExist(err) {
		t.Fatalf("stale input visible in retry workspace: %v", err)
	}
}

func TestAcquireRequiresRootAndJobID(t *testing.T) {
	if _, err := workspace.Acquire("", "abc"); err == nil {
		t.Fatal("expected error for empty staging root")
	}
	if _, err := workspace.Acquire(t.TempDir(), " "); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestCleanStaleRemovesOnlyOldJobDirs(t *testing.T) {
	root := t.TempDir()
	logger := logging.NewNop()

	stale := filepath.Join(root, "job-old")
	fresh := filepath.Join(root, "job-new")
	unrelated := filepath.Join(root, "keep-me")
	for _, dir := range []string{stale, fresh, unrelated} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	oldTime := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(unrelated, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := workspace.CleanStale(t.Context(), root, 24*time.Hour, logger)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected cleanup errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("unexpected removals: %+v", result.Removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh workspace removed: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("unrelated dir removed: %v", err)
	}
}
