package statsui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrapTextBreaksAtSpaces(t *testing.T) {
	lines := wrapText("aaa bbb ccc", 7, "  ")
	want := []string{"aaa", "  bbb", "  ccc"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected wrap: %q", lines)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	lines := wrapText("abcdefgh", 4, "")
	if len(lines) != 2 || lines[0] != "abcd" || lines[1] != "efgh" {
		t.Fatalf("unexpected wrap: %q", lines)
	}
}

func TestWrapTextFitsWidth(t *testing.T) {
	msg := "Stage stage_3_hard shows a plateau; vary the approach to break through the 微妙 ceiling"
	for _, width := range []int{10, 20, 33} {
		for _, line := range wrapText(msg, width, "    ") {
			if w := runewidth.StringWidth(line); w > width {
				t.Fatalf("line %q is %d wide, limit %d", line, w, width)
			}
		}
	}
}

func TestWrapTextNoWidth(t *testing.T) {
	if lines := wrapText("keep me", 0, "  "); len(lines) != 1 || lines[0] != "keep me" {
		t.Fatalf("unexpected wrap: %q", lines)
	}
	if lines := wrapText("", 10, ""); len(lines) != 1 || lines[0] != "" {
		t.Fatalf("expected one empty line, got %q", lines)
	}
}
