// ABOUTME: Tests for segment abstracts used as look-ahead previews
// ABOUTME: Verifies truncation at sentence ends and the empty sentinel
package segment

import (
	"strings"
	"testing"
)

func TestAbstract(t *testing.T) {
	if got := Abstract("short text.", 200); got != "short text." {
		t.Errorf("Abstract() = %q", got)
	}
	if got := Abstract("   ", 200); got != "" {
		t.Errorf("Abstract(blank) = %q, want empty", got)
	}

	// Sentence end past the halfway mark is used as the cut
	text := strings.Repeat("a", 150) + "。" + strings.Repeat("b", 100)
	got := Abstract(text, 200)
	want := strings.Repeat("a", 150) + "。..."
	if got != want {
		t.Errorf("Abstract() = %q, want %q", got, want)
	}

	// Sentence end too early is ignored
	text = strings.Repeat("a", 20) + "." + strings.Repeat("b", 300)
	got = Abstract(text, 200)
	if len([]rune(got)) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("Abstract() length = %d, want 203 with ellipsis", len([]rune(got)))
	}
}

func TestPreview(t *testing.T) {
	pieces := []Piece{
		{Index: 0, Text: "first"},
		{Index: 1, Text: "second"},
		{Index: 2, Text: "third", Closing: true},
	}

	got := Preview(pieces, 0)
	if got != "[Middle] second\n[Closing] third" {
		t.Errorf("Preview(0) = %q", got)
	}
	if got := Preview(pieces, 1); got != "[Closing] third" {
		t.Errorf("Preview(1) = %q", got)
	}
	if got := Preview(pieces, 2); got != NoFollowingContent {
		t.Errorf("Preview(2) = %q, want sentinel", got)
	}
}
