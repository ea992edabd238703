package util

import (
	"strings"
	"testing"
)

func TestWrapString(t *testing.T) {
	if got := WrapString("short text"); got != "short text" {
		t.Errorf("expected short text to stay on one line, got %q", got)
	}

	long := strings.Repeat("word ", 30)
	for i, line := range strings.Split(WrapString(long), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %d exceeds %d characters: %q", i, Wrap, line)
		}
	}

	// Wrapping only rearranges whitespace.
	joined := strings.ReplaceAll(WrapString(long), "\n", " ")
	if joined != strings.TrimSpace(long) {
		t.Errorf("expected wrapping to preserve the words, got %q", joined)
	}
}
