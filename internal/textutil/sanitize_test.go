package textutil_test

import (
	"testing"

	"clipforge/internal/textutil"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "talk.mp4", "talk.mp4"},
		{"slashes become dashes", "a/b\\c.mp4", "a-b-c.mp4"},
		{"unsafe removed", "wh?at<is>th|is\".mp4", "whatisthis.mp4"},
		{"trimmed", "  clip.mp4  ", "clip.mp4"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeFileName(tc.input); got != tc.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Alice", "alice"},
		{"keeps digits and dashes", "user-42", "user-42"},
		{"replaces punctuation", "a b.c", "a_b_c"},
		{"empty becomes unknown", "", "unknown"},
		{"only punctuation becomes unknown", "!!!", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.SanitizeToken(tc.input); got != tc.want {
				t.Fatalf("SanitizeToken(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
