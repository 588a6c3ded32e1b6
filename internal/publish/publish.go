package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"clipforge/internal/services"
	"clipforge/internal/storage"
)

// Result describes a published output.
type Result struct {
	Key       string
	URL       string
	ExpiresAt time.Time
	Size      int64
}

// Publisher moves assembled videos into the durable store and mints
// time-limited download links for them.
type Publisher struct {
	store  storage.ObjectStore
	signer *storage.Signer
	ttl    time.Duration
}

// New constructs a Publisher. ttl bounds how long minted links stay valid.
func New(store storage.ObjectStore, signer *storage.Signer, ttl time.Duration) (*Publisher, error) {
	if store == nil {
		return nil, fmt.Errorf("publisher requires an object store")
	}
	if signer == nil {
		return nil, fmt.Errorf("publisher requires a link signer")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("link ttl %v must be positive", ttl)
	}
	return &Publisher{store: store, signer: signer, ttl: ttl}, nil
}

// Publish uploads the local output file under the job's processed key and
// returns the signed download link. The local file is left in place; the
// workspace sweep removes it with the rest of the job directory.
func (p *Publisher) Publish(ctx context.Context, userID, jobID, localPath string) (Result, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPublish, "publish", "open", fmt.Sprintf("open output %q", localPath), err)
	}
	defer f.Close()

	key := storage.ProcessedKey(userID, jobID)
	size, err := p.store.Put(ctx, key, f)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPublish, "publish", "upload", fmt.Sprintf("store output as %q", key), err)
	}

	url, expiry, err := p.signer.SignedURL(key, p.ttl)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPublish, "publish", "sign", fmt.Sprintf("mint link for %q", key), err)
	}

	return Result{Key: key, URL: url, ExpiresAt: expiry, Size: size}, nil
}
