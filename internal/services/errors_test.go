package services_test

import (
	"errors"
	"testing"

	"clipforge/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrAcquisition, "acquire", "download", "remote url", base)

	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "publish", "", "upload interrupted", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestMessageStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrTranscode, "transcode", "ffmpeg", "exit status 1", nil)
	got := services.Message(err)
	want := "transcode: ffmpeg: exit status 1"
	if got != want {
		t.Fatalf("Message() = %q, want %q", got, want)
	}
}

func TestMessageNil(t *testing.T) {
	if got := services.Message(nil); got != "" {
		t.Fatalf("Message(nil) = %q, want empty", got)
	}
}
