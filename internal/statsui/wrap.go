// Package statsui provides the Bubble Tea stage report viewer.
package statsui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type cell struct {
	r       rune
	width   int
	isSpace bool
}

func cellsOf(s string) []cell {
	out := make([]cell, 0, len(s))
	for _, r := range s {
		out = append(out, cell{r: r, width: runewidth.RuneWidth(r), isSpace: r == ' '})
	}
	return out
}

func renderCells(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteRune(c.r)
	}
	return b.String()
}

// wrapText breaks s into lines at most width cells wide, preferring to
// break at spaces. Every line after the first starts with indent.
func wrapText(s string, width int, indent string) []string {
	if width <= 0 {
		return []string{s}
	}
	indentWidth := runewidth.StringWidth(indent)
	limit := width
	var out []string
	cells := cellsOf(s)
	line := make([]cell, 0, len(cells))
	lineWidth := 0
	lastSpaceIdx := -1

	flush := func(part []cell) {
		text := strings.TrimRight(renderCells(part), " ")
		if len(out) > 0 {
			text = indent + text
		}
		out = append(out, text)
		limit = max(width-indentWidth, 1)
	}

	for i := 0; i < len(cells); {
		c := cells[i]
		if lineWidth+c.width > limit && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				flush(line[:lastSpaceIdx])
				line = append([]cell{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				flush(line)
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		if c.isSpace && len(line) == 0 && len(out) > 0 {
			// Drop leading spaces on continuation lines.
			i++
			continue
		}
		line = append(line, c)
		lineWidth += c.width
		if c.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	if len(line) > 0 || len(out) == 0 {
		flush(line)
	}
	return out
}

func lineWidthOf(line []cell) int {
	total := 0
	for _, c := range line {
		total += c.width
	}
	return total
}

func lastSpaceIndex(line []cell) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
