package generator

import (
	"testing"
	"time"

	"github.com/verte-zerg/popkit/internal/gesture"
)

func TestPlaysStayInBounds(t *testing.T) {
	g := NewSeeded(7)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultProfile()
	p.AccuracySpread = 0.5
	plays := g.Plays("stage_1_easy", 200, p, start, time.Minute)
	if len(plays) != 200 {
		t.Fatalf("expected 200 plays, got %d", len(plays))
	}
	for i, play := range plays {
		if play.Stage != "stage_1_easy" {
			t.Fatalf("play %d has stage %q", i, play.Stage)
		}
		if play.Score < 0 || play.CompletionTime < 1 {
			t.Fatalf("play %d out of bounds: %+v", i, play)
		}
		if play.Accuracy < 0 || play.Accuracy > 1 {
			t.Fatalf("play %d accuracy out of range: %v", i, play.Accuracy)
		}
		if want := start.Add(time.Duration(i) * time.Minute); !play.Timestamp.Equal(want) {
			t.Fatalf("play %d at %s, want %s", i, play.Timestamp, want)
		}
	}
}

func TestSeededGeneratorsRepeat(t *testing.T) {
	a := NewSeeded(42).Dataset(20, 10, 2)
	b := NewSeeded(42).Dataset(20, 10, 2)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("value %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStagesGetHarder(t *testing.T) {
	g := NewSeeded(1)
	base := DefaultProfile()
	base.ScoreSpread = 0
	base.Improvement = 0
	data := g.Stages(3, 5, base, 0.5, time.Now())
	if len(data) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(data))
	}
	if !(data["stage_1"][0].Score > data["stage_2"][0].Score && data["stage_2"][0].Score > data["stage_3"][0].Score) {
		t.Fatalf("expected scores to fall with stage: %v %v %v", data["stage_1"][0].Score, data["stage_2"][0].Score, data["stage_3"][0].Score)
	}
}

func TestSamplesAreRecognized(t *testing.T) {
	g := NewSeeded(3)
	engine := gesture.New(gesture.DefaultConfig(), nil)
	for _, p := range gesture.Builtins() {
		if p.OneHandedOnly {
			continue
		}
		for i := 0; i < 20; i++ {
			res, ok := engine.Recognize(g.Sample(p, 0, time.Now()))
			if !ok {
				t.Fatalf("sample of %s was not recognized", p.Kind)
			}
			if res.Kind != p.Kind {
				if p.Kind == gesture.PinchOut && res.Kind == gesture.PinchIn {
					// Scale 1.0 sits on both pinch ranges.
					continue
				}
				t.Fatalf("sample of %s recognized as %s", p.Kind, res.Kind)
			}
		}
	}
}

func TestOutcomes(t *testing.T) {
	g := NewSeeded(9)
	outcomes := g.Outcomes(100, 1, 400, time.Now())
	if len(outcomes) != 100 {
		t.Fatalf("expected 100 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Success {
			t.Fatalf("expected every outcome to succeed at rate 1")
		}
		if o.Sample.StartX == nil || *o.Sample.StartX < 0 || *o.Sample.StartX > 400 {
			t.Fatalf("unexpected start x: %v", o.Sample.StartX)
		}
		if o.ViewportWidth != 400 {
			t.Fatalf("unexpected viewport width: %v", o.ViewportWidth)
		}
	}
}
