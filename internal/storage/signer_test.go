package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer, err := NewSigner("secret", "http://127.0.0.1:7512/")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	url, expiry, err := signer.SignedURL("processed/u1/j1.mp4", 24*time.Hour)
	if err != nil {
		t.Fatalf("SignedURL failed: %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:7512/download/") {
		t.Fatalf("unexpected url: %s", url)
	}
	if until := time.Until(expiry); until < 23*time.Hour || until > 24*time.Hour {
		t.Fatalf("unexpected expiry window: %v", until)
	}

	token := strings.TrimPrefix(url, "http://127.0.0.1:7512/download/")
	key, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if key != "processed/u1/j1.mp4" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signer, err := NewSigner("secret", "http://example.com")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	signer.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, _, err := signer.Token("processed/u1/j1.mp4", 24*time.Hour)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	signer.now = time.Now
	if _, err := signer.Verify(token); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	signer, err := NewSigner("secret", "http://example.com")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	token, _, err := signer.Token("processed/u1/j1.mp4", time.Hour)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	tampered := token[:len(token)-2]
	if _, err := signer.Verify(tampered); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	other, err := NewSigner("different-secret", "http://example.com")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature across secrets, got %v", err)
	}
}

func TestTokenRequiresKeyAndTTL(t *testing.T) {
	signer, err := NewSigner("secret", "http://example.com")
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	if _, _, err := signer.Token("", time.Hour); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, _, err := signer.Token("k", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
