package stats

import "testing"

func TestTableAlignsColumns(t *testing.T) {
	tbl := Table{
		Headers:    []string{"Stage", "Mean", "Plays"},
		Rows:       [][]string{{"easy-1", "97.50", "12"}, {"hard-boss", "8.00", "3"}},
		RightAlign: map[int]bool{1: true, 2: true},
	}
	lines := tbl.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Stage      Mean Plays" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "easy-1    97.50    12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "hard-boss  8.00     3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestTableWideRunes(t *testing.T) {
	tbl := Table{Headers: []string{"名前", "n"}, Rows: [][]string{{"a", "1"}}}
	lines := tbl.Lines()
	if lines[1] != "a    1" {
		t.Fatalf("expected wide header to pad narrow cell, got %q", lines[1])
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if same := MovingAverage([]float64{1, 2}, 1); same[0] != 1 || same[1] != 2 {
		t.Fatalf("window 1 should copy input, got %v", same)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{1, 1, 1}); got != "+++" {
		t.Fatalf("flat sparkline: %q", got)
	}
	got := Sparkline([]float64{0, 10})
	if got != " @" {
		t.Fatalf("unexpected sparkline: %q", got)
	}
}
