package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestPlotSeries(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Scores", []Series{
		{Name: "stage-1", Values: []float64{100, 200, 300, 200, 100}},
		{Name: "stage-2", Values: []float64{150, 150, 250, 350, 450}},
	}, 12, 4)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Scores") {
		t.Fatalf("expected title in output")
	}
	if !strings.Contains(out, "Legend: stage-1, stage-2") {
		t.Fatalf("expected legend in output, got %q", out)
	}
	if !strings.Contains(out, "450") || !strings.Contains(out, "100") {
		t.Fatalf("expected axis bounds in output, got %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1+4+1 {
		t.Fatalf("expected 6 lines of output, got %d", len(lines))
	}
}

func TestPlotSeriesSkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "Empty", []Series{{Name: "none"}}, 10, 3); err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(80); got != 80-axisLabelWidth-3 {
		t.Fatalf("unexpected width %d", got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
	if got := PlotWidthFor(5); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestResampleKeepsEndpoints(t *testing.T) {
	out := resample([]float64{1, 3}, 5)
	if out[0] != 1 || out[4] != 3 || out[2] != 2 {
		t.Fatalf("unexpected resample: %v", out)
	}
	down := resample([]float64{1, 1, 5, 5}, 2)
	if down[0] != 1 || down[1] != 5 {
		t.Fatalf("unexpected downsample: %v", down)
	}
}
