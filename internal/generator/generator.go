// Package generator builds synthetic play history and gesture input for
// simulations and demos.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/verte-zerg/popkit/internal/adaptation"
	"github.com/verte-zerg/popkit/internal/gesture"
	"github.com/verte-zerg/popkit/internal/model"
)

// Generator produces randomized plays, datasets and gesture samples.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeeded returns a Generator with a fixed seed, for reproducible runs.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// PlayProfile shapes the plays generated for one stage. Improvement is
// added to the mean score after every play.
type PlayProfile struct {
	Score          float64
	ScoreSpread    float64
	Improvement    float64
	Time           float64
	TimeSpread     float64
	Accuracy       float64
	AccuracySpread float64
}

// DefaultProfile is a middling player on a normal stage.
func DefaultProfile() PlayProfile {
	return PlayProfile{
		Score:          500,
		ScoreSpread:    80,
		Improvement:    5,
		Time:           120,
		TimeSpread:     20,
		Accuracy:       0.75,
		AccuracySpread: 0.08,
	}
}

// Plays generates count plays of stage, one per interval starting at start.
// Scores and times never go below zero and accuracy stays in [0, 1].
func (g *Generator) Plays(stage string, count int, p PlayProfile, start time.Time, interval time.Duration) []model.Play {
	plays := make([]model.Play, 0, count)
	for i := 0; i < count; i++ {
		mean := p.Score + p.Improvement*float64(i)
		plays = append(plays, model.Play{
			Stage:          stage,
			Score:          math.Round(math.Max(0, g.normal(mean, p.ScoreSpread))),
			CompletionTime: math.Max(1, g.normal(p.Time, p.TimeSpread)),
			Accuracy:       clamp01(g.normal(p.Accuracy, p.AccuracySpread)),
			Timestamp:      start.Add(time.Duration(i) * interval),
		})
	}
	return plays
}

// Stages generates plays for stage_1 .. stage_n. Later stages score lower
// and take longer, scaled by step.
func (g *Generator) Stages(n, count int, base PlayProfile, step float64, start time.Time) map[string][]model.Play {
	out := make(map[string][]model.Play, n)
	for i := 0; i < n; i++ {
		p := base
		factor := 1 + step*float64(i)
		p.Score /= factor
		p.Time *= factor
		p.Accuracy = clamp01(p.Accuracy / math.Sqrt(factor))
		stage := fmt.Sprintf("stage_%d", i+1)
		out[stage] = g.Plays(stage, count, p, start, time.Hour)
	}
	return out
}

// Dataset draws n values from a normal distribution.
func (g *Generator) Dataset(n int, mean, sd float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = g.normal(mean, sd)
	}
	return values
}

// Sample builds a sample for a built-in or given pattern with every axis
// drawn inside the pattern's range. Spread > 0 widens the draw beyond the
// range by that fraction of its width on each side.
func (g *Generator) Sample(p gesture.Pattern, spread float64, at time.Time) gesture.Sample {
	s := gesture.Sample{
		Type:      p.Type,
		Fingers:   p.Fingers,
		Edge:      p.Edge,
		Corner:    p.Corner,
		Timestamp: at,
	}
	if s.Fingers == 0 {
		s.Fingers = 1
		if p.Type == gesture.TypePinch {
			s.Fingers = 2
		}
	}
	s.Duration = g.draw(p.Duration, spread)
	s.Distance = g.draw(p.Distance, spread)
	s.Velocity = g.draw(p.Velocity, spread)
	s.Direction = g.draw(p.Direction, spread)
	s.Scale = g.draw(p.Scale, spread)
	s.Interval = g.draw(p.Interval, spread)
	s.Movement = g.draw(p.Movement, spread)
	return s
}

// Outcomes simulates count attempts over the built-in touch, swipe and
// pinch gestures on a viewport of the given width. Each attempt succeeds
// with probability successRate.
func (g *Generator) Outcomes(count int, successRate, width float64, start time.Time) []adaptation.Outcome {
	var pool []gesture.Pattern
	for _, p := range gesture.Builtins() {
		if !p.OneHandedOnly {
			pool = append(pool, p)
		}
	}
	out := make([]adaptation.Outcome, 0, count)
	for i := 0; i < count; i++ {
		p := pool[g.rnd.Intn(len(pool))]
		s := g.Sample(p, 0.2, start.Add(time.Duration(i)*time.Second))
		s.StartX = gesture.Float(g.rnd.Float64() * width)
		s.StartY = gesture.Float(g.rnd.Float64() * width * 2)
		out = append(out, adaptation.Outcome{
			Gesture:       string(p.Kind),
			Sample:        s,
			Success:       g.rnd.Float64() < successRate,
			ViewportWidth: width,
		})
	}
	return out
}

func (g *Generator) draw(r *gesture.Range, spread float64) *float64 {
	if r == nil {
		return nil
	}
	width := r.High - r.Low
	lo := r.Low - width*spread
	hi := r.High + width*spread
	if r.Low >= 0 {
		lo = math.Max(0, lo)
	}
	return gesture.Float(lo + g.rnd.Float64()*(hi-lo))
}

func (g *Generator) normal(mean, sd float64) float64 {
	if sd <= 0 {
		return mean
	}
	return mean + g.rnd.NormFloat64()*sd
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
