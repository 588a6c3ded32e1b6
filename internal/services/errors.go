package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAcquisition marks failures fetching source media into the workspace.
	ErrAcquisition = errors.New("acquisition error")
	// ErrValidation marks malformed clip ranges or an empty clip list in explicit mode.
	ErrValidation = errors.New("validation error")
	// ErrNoUsableMedia marks a resolver run that produced zero usable assets.
	ErrNoUsableMedia = errors.New("no usable media")
	// ErrTranscode marks a failure reported by the transcoding engine.
	ErrTranscode = errors.New("transcode error")
	// ErrPublish marks upload or link-issuance failures.
	ErrPublish = errors.New("publish error")
	// ErrInsufficientCredits marks a balance below the amount a generation requires.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrTimeout marks a pipeline attempt that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrConfiguration marks unusable configuration discovered at runtime.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Message extracts the text persisted on a failed job record. The sentinel
// prefix is dropped so users see "acquire: download: ..." rather than the
// classification marker.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	for _, marker := range []error{
		ErrAcquisition,
		ErrValidation,
		ErrNoUsableMedia,
		ErrTranscode,
		ErrPublish,
		ErrInsufficientCredits,
		ErrTimeout,
		ErrConfiguration,
		ErrTransient,
	} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
