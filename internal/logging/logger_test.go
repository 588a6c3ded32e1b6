package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"clipforge/internal/services"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	handler := newPrettyHandler(&buf, levelVar, false)
	logger := slog.New(handler).With(String(FieldComponent, "workflow"))

	logger.Info("stage started", String(FieldStage, "acquire"), Int("inputs", 2))

	line := buf.String()
	if !strings.Contains(line, "INFO workflow: stage started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "stage=acquire") || !strings.Contains(line, "inputs=2") {
		t.Fatalf("attrs missing from line: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar, false))

	logger.Warn("download failed", String("reason", "connection reset by peer"))

	if !strings.Contains(buf.String(), `reason="connection reset by peer"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, levelVar, false))

	ctx := services.WithJobID(context.Background(), "job-7")
	ctx = services.WithUserID(ctx, "user-1")
	ctx = services.WithStage(ctx, "transcode")

	WithContext(ctx, logger).Info("progress")

	line := buf.String()
	for _, want := range []string{"job_id=job-7", "user_id=user-1", "stage=transcode"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("bogus"); got != slog.LevelInfo {
		t.Fatalf("parseLevel(bogus) = %v", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel(debug) = %v", got)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
