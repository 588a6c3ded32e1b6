package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/storage"
)

// Acquirer fetches source media into a job workspace, either from the
// object store or from remote URLs.
type Acquirer struct {
	store  storage.ObjectStore
	client *http.Client
	logger *slog.Logger
}

const fanOutConcurrency = 4

// New constructs an Acquirer. timeout bounds each remote download.
func New(store storage.ObjectStore, timeout time.Duration, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Acquirer{
		store:  store,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FromStore copies an object out of the media store to destPath.
func (a *Acquirer) FromStore(ctx context.Context, key, destPath string) error {
	rc, err := a.store.Get(ctx, key)
	if err != nil {
		return services.Wrap(services.ErrAcquisition, "acquire", "store", fmt.Sprintf("fetch %q", key), err)
	}
	defer rc.Close()

	if err := writeAtomic(destPath, rc); err != nil {
		return services.Wrap(services.ErrAcquisition, "acquire", "store", fmt.Sprintf("stage %q", key), err)
	}
	return nil
}

// FromURL downloads a remote video to destPath. Partial downloads are
// discarded so a failed fetch leaves nothing behind.
func (a *Acquirer) FromURL(ctx context.Context, url, destPath string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return services.Wrap(services.ErrValidation, "acquire", "download", "source url required", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "acquire", "download", fmt.Sprintf("bad source url %q", url), err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrAcquisition, "acquire", "download", fmt.Sprintf("fetch %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrAcquisition, "acquire", "download",
			fmt.Sprintf("fetch %s: unexpected status %d", url, resp.StatusCode), nil)
	}

	if err := writeAtomic(destPath, resp.Body); err != nil {
		return services.Wrap(services.ErrAcquisition, "acquire", "download", fmt.Sprintf("stage %s", url), err)
	}
	return nil
}

// FanOut downloads several URLs concurrently, writing URL i to destFor(i).
// Individual failures are logged and dropped; the returned paths keep input
// order. All downloads failing yields ErrNoUsableMedia, since nothing can
// be assembled from zero inputs.
func (a *Acquirer) FanOut(ctx context.Context, urls []string, destFor func(i int) string) ([]string, error) {
	if len(urls) == 0 {
		return nil, services.Wrap(services.ErrNoUsableMedia, "acquire", "fanout", "no source urls provided", nil)
	}

	results := make([]string, len(urls))
	var g errgroup.Group
	g.SetLimit(fanOutConcurrency)

	for i, url := range urls {
		g.Go(func() error {
			dest := destFor(i)
			if err := a.FromURL(ctx, url, dest); err != nil {
				a.logger.Warn("dropping failed source download",
					logging.String("url", url),
					logging.Error(err),
					logging.String(logging.FieldEventType, "acquire_drop"),
				)
				return nil
			}
			results[i] = dest
			return nil
		})
	}
	// Goroutines swallow their own errors, so Wait only reflects ctx state.
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, services.Wrap(services.ErrTimeout, "acquire", "fanout", "source downloads cancelled", ctx.Err())
	}

	paths := make([]string, 0, len(results))
	for _, path := range results {
		if path != "" {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrNoUsableMedia, "acquire", "fanout", "every source download failed", nil)
	}
	return paths, nil
}

func writeAtomic(destPath string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".acquire-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_, err = io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write destination: %w", err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize destination: %w", err)
	}
	return nil
}
