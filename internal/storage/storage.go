package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/textutil"
)

// ErrNotFound indicates the requested object key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the durable media store holding uploaded sources and
// published outputs, addressed by slash-separated keys such as
// "processed/<user>/<job>.mp4".
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// UploadKey returns the object key for a user's uploaded source. The user id
// and filename are caller-supplied, so both are sanitized before they become
// path segments.
func UploadKey(userID, filename string) string {
	return "uploads/" + textutil.SanitizeToken(userID) + "/" + textutil.SanitizeFileName(filename)
}

// ProcessedKey returns the object key a job's published output lives under.
func ProcessedKey(userID, jobID string) string {
	return "processed/" + textutil.SanitizeToken(userID) + "/" + jobID + ".mp4"
}

// Local is an ObjectStore backed by a directory tree under the library root.
type Local struct {
	root string
}

// NewLocal creates a directory-backed object store.
func NewLocal(root string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("object store root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create object store root: %w", err)
	}
	return &Local{root: root}, nil
}

// Put streams an object into the store, replacing any existing object. The
// write goes to a temp file first so readers never observe a partial object.
func (l *Local) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := l.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	written, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("write object %q: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("finalize object %q: %w", key, err)
	}
	return written, nil
}

// Get opens an object for reading.
func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return f, nil
}

// Stat returns an object's size.
func (l *Local) Stat(ctx context.Context, key string) (int64, error) {
	path, err := l.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("stat object %q: %w", key, err)
	}
	return info.Size(), nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	path, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

// resolve maps a key to a filesystem path, rejecting keys that would escape
// the store root.
func (l *Local) resolve(key string) (string, error) {
	cleaned := strings.TrimSpace(key)
	if cleaned == "" {
		return "", errors.New("object key required")
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", fmt.Errorf("object key %q must be relative", key)
	}
	normalized := filepath.FromSlash(cleaned)
	joined := filepath.Join(l.root, normalized)
	rel, err := filepath.Rel(l.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes the store root", key)
	}
	return joined, nil
}
