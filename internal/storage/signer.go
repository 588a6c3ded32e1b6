package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrLinkExpired indicates a signed link's validity window has passed.
var ErrLinkExpired = errors.New("download link expired")

// ErrBadSignature indicates a tampered or malformed signed link.
var ErrBadSignature = errors.New("invalid download link signature")

// Signer mints and verifies time-limited download tokens for object keys.
// A token is base64url("key|expiryUnix|hmac-sha256(key|expiryUnix)"), so
// possession of the link is the only credential needed to fetch the object
// until it expires.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewSigner creates a Signer. baseURL is the external address links are
// minted against, without a trailing slash.
func NewSigner(secret, baseURL string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret required")
	}
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:     time.Now,
	}, nil
}

// SignedURL mints a download URL for key that stays valid for ttl.
func (s *Signer) SignedURL(key string, ttl time.Duration) (string, time.Time, error) {
	token, expiry, err := s.Token(key, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/download/" + token, expiry, nil
}

// Token mints the bare signed token for key.
func (s *Signer) Token(key string, ttl time.Duration) (string, time.Time, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", time.Time{}, errors.New("object key required")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("ttl %v must be positive", ttl)
	}

	expiry := s.now().Add(ttl).UTC().Truncate(time.Second)
	payload := key + "|" + strconv.FormatInt(expiry.Unix(), 10)
	token := base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + s.sign(payload)))
	return token, expiry, nil
}

// Verify checks a token's signature and expiry and returns the object key.
func (s *Signer) Verify(token string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 3 {
		return "", ErrBadSignature
	}
	key, expiryRaw, signature := parts[0], parts[1], parts[2]

	payload := key + "|" + expiryRaw
	if !hmac.Equal([]byte(signature), []byte(s.sign(payload))) {
		return "", ErrBadSignature
	}

	expiryUnix, err := strconv.ParseInt(expiryRaw, 10, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	if s.now().After(time.Unix(expiryUnix, 0)) {
		return "", ErrLinkExpired
	}
	return key, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
