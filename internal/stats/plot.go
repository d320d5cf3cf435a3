// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight = 8
	minPlotWidth      = 10
	fallbackTermWidth = 80
	axisLabelWidth    = 9
	axisSeparator     = " │ "
	colorReset        = "\x1b[0m"
)

var seriesColors = []string{"\x1b[36m", "\x1b[35m", "\x1b[33m", "\x1b[32m", "\x1b[34m"}

// canvas is a grid of braille cells, each holding 2x4 dots.
type canvas struct {
	width, height int
	dots          [][]uint8
	owner         [][]int
}

func newCanvas(width, height int) *canvas {
	c := &canvas{width: width, height: height}
	c.dots = make([][]uint8, height)
	c.owner = make([][]int, height)
	for y := range c.dots {
		c.dots[y] = make([]uint8, width)
		c.owner[y] = make([]int, width)
		for x := range c.owner[y] {
			c.owner[y][x] = -1
		}
	}
	return c
}

// braille dot bit for a sub-cell column (0-1) and row (0-3).
var dotBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func (c *canvas) set(px, py, series int) {
	cx, cy := px/2, py/4
	if px < 0 || py < 0 || cx >= c.width || cy >= c.height {
		return
	}
	c.dots[cy][cx] |= dotBits[px%2][py%4]
	if c.owner[cy][cx] < 0 {
		c.owner[cy][cx] = series
	}
}

// line draws between two dot coordinates with Bresenham's algorithm.
func (c *canvas) line(x0, y0, x1, y1, series int) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(x0, y0, series)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// PlotSeries renders series on a shared vertical scale as a braille chart.
// A width of 0 sizes the chart to the terminal.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return plot(w, title, series, width, height, useColor(w))
}

// PlotSeriesWithColor is PlotSeries with explicit color control.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, color bool) error {
	return plot(w, title, series, width, height, color && os.Getenv("NO_COLOR") == "")
}

func plot(w io.Writer, title string, series []Series, width, height int, color bool) error {
	var all []float64
	kept := series[:0:0]
	for _, s := range series {
		vals := Finite(s.Values)
		if len(vals) == 0 {
			continue
		}
		kept = append(kept, Series{Name: s.Name, Values: vals})
		all = append(all, vals...)
	}
	if len(kept) == 0 {
		return nil
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)
	if height <= 0 {
		height = defaultPlotHeight
	}

	bounds := Describe(all)
	lo, hi := bounds.Min, bounds.Max
	if hi-lo < 1e-9 {
		lo--
		hi++
	}
	dotsHigh := height * 4
	cv := newCanvas(width, height)
	for si, s := range kept {
		points := resample(s.Values, width*2)
		prevX, prevY := -1, -1
		for x, v := range points {
			y := int(math.Round((hi - v) / (hi - lo) * float64(dotsHigh-1)))
			y = clampInt(y, 0, dotsHigh-1)
			if prevX >= 0 {
				cv.line(prevX, prevY, x, y, si)
			} else {
				cv.set(x, y, si)
			}
			prevX, prevY = x, y
		}
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteByte('\n')
	}
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = fmt.Sprintf("%.4g", hi)
		case height - 1:
			label = fmt.Sprintf("%.4g", lo)
		}
		b.WriteString(runewidth.FillLeft(runewidth.Truncate(label, axisLabelWidth, ""), axisLabelWidth))
		b.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			ch := rune(0x2800 + int(cv.dots[y][x]))
			if color && cv.owner[y][x] >= 0 {
				b.WriteString(seriesColors[cv.owner[y][x]%len(seriesColors)])
				b.WriteRune(ch)
				b.WriteString(colorReset)
				continue
			}
			b.WriteRune(ch)
		}
		b.WriteByte('\n')
	}
	names := make([]string, len(kept))
	for i, s := range kept {
		names[i] = s.Name
		if color {
			names[i] = seriesColors[i%len(seriesColors)] + s.Name + colorReset
		}
	}
	b.WriteString("Legend: " + strings.Join(names, ", ") + "\n")
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// resample stretches or averages values onto n evenly spaced points.
func resample(values []float64, n int) []float64 {
	out := make([]float64, n)
	if len(values) == 1 || n == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	if len(values) > n {
		for i := range out {
			start := i * len(values) / n
			end := max((i+1)*len(values)/n, start+1)
			out[i] = Describe(values[start:end]).Mean
		}
		return out
	}
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	return max(totalWidth-axisLabelWidth-runewidth.StringWidth(axisSeparator), minPlotWidth)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackTermWidth
	}
	return width
}

func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
