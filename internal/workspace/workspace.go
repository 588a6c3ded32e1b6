package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is a per-job scratch directory under the staging root. Source
// media is acquired into it, the assembled output is written there, and the
// whole directory is removed once the attempt finishes.
type Workspace struct {
	root string
	dir  string
}

// Acquire creates a fresh scratch directory for one attempt of a job. The
// directory name carries an attempt suffix so a retry never sees partial
// files left behind by a crashed earlier attempt.
func Acquire(stagingRoot, jobID string) (*Workspace, error) {
	root := strings.TrimSpace(stagingRoot)
	if root == "" {
		return nil, fmt.Errorf("staging root is not configured")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	attempt := uuid.NewString()[:8]
	dir := filepath.Join(root, "job-"+jobID+"-"+attempt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", dir, err)
	}
	return &Workspace{root: root, dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// InputPath returns the path for the numbered source input.
func (w *Workspace) InputPath(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("input-%02d.mp4", index))
}

// OutputPath returns the path the assembled video is written to.
func (w *Workspace) OutputPath() string {
	return filepath.Join(w.dir, "output.mp4")
}

// Release removes the workspace directory and everything in it.
func (w *Workspace) Release() error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %q: %w", w.dir, err)
	}
	return nil
}
