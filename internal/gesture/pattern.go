package gesture

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

// Range is a closed interval. Low <= High always holds for ranges built
// with NewRange or decoded from JSON or YAML.
type Range struct {
	Low  float64
	High float64
}

// NewRange returns the interval between a and b, whichever order they come in.
func NewRange(a, b float64) Range {
	if a > b {
		a, b = b, a
	}
	return Range{Low: a, High: b}
}

func rng(a, b float64) *Range {
	r := NewRange(a, b)
	return &r
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool { return v >= r.Low && v <= r.High }

// Center is the midpoint of the range.
func (r Range) Center() float64 { return (r.Low + r.High) / 2 }

// Half is half the width of the range.
func (r Range) Half() float64 { return (r.High - r.Low) / 2 }

// MarshalJSON encodes the range as [low, high].
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Low, r.High})
}

// UnmarshalJSON decodes a [low, high] pair.
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failed to decode range: %w", err)
	}
	*r = NewRange(pair[0], pair[1])
	return nil
}

// MarshalYAML encodes the range as a two element sequence.
func (r Range) MarshalYAML() (any, error) {
	return []float64{r.Low, r.High}, nil
}

// UnmarshalYAML decodes a two element sequence.
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	var pair []float64
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("failed to decode range at line %d: %w", node.Line, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("range at line %d needs 2 values, got %d", node.Line, len(pair))
	}
	*r = NewRange(pair[0], pair[1])
	return nil
}

// RangeMatch scores v against r. It is 1 inside the range and falls off
// linearly outside it, reaching 0 once v is two half-widths from the
// center. A zero-width range scores 0 for any other value.
func RangeMatch(v float64, r Range) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if r.Contains(v) {
		return 1
	}
	half := r.Half()
	if half == 0 {
		return 0
	}
	return math.Max(0, 2-math.Abs(v-r.Center())/half)
}

// alignAngle moves the angle v by whole turns so it lies within 180
// degrees of center.
func alignAngle(v, center float64) float64 {
	d := v - center
	return center + d - 360*math.Round(d/360)
}

// Pattern describes one recognizable gesture. Nil ranges are not scored.
type Pattern struct {
	Kind          Kind        `json:"kind" yaml:"kind"`
	Name          string      `json:"name,omitempty" yaml:"name,omitempty"`
	Type          Type        `json:"type" yaml:"type"`
	Fingers       int         `json:"fingers,omitempty" yaml:"fingers,omitempty"`
	Duration      *Range      `json:"duration,omitempty" yaml:"duration,omitempty"`
	Distance      *Range      `json:"distance,omitempty" yaml:"distance,omitempty"`
	Velocity      *Range      `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Direction     *Range      `json:"direction,omitempty" yaml:"direction,omitempty"`
	Scale         *Range      `json:"scale,omitempty" yaml:"scale,omitempty"`
	Interval      *Range      `json:"interval,omitempty" yaml:"interval,omitempty"`
	Movement      *Range      `json:"movement,omitempty" yaml:"movement,omitempty"`
	Edge          Edge        `json:"edge,omitempty" yaml:"edge,omitempty"`
	Corner        Corner      `json:"corner,omitempty" yaml:"corner,omitempty"`
	Size          *[2]float64 `json:"size,omitempty" yaml:"size,omitempty"`
	Action        Action      `json:"action,omitempty" yaml:"action,omitempty"`
	OneHandedOnly bool        `json:"oneHandedOnly,omitempty" yaml:"oneHandedOnly,omitempty"`
	Alternatives  []string    `json:"alternatives,omitempty" yaml:"alternatives,omitempty"`
}

// Label is the display name of the pattern.
func (p Pattern) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.Kind)
}

// Clone returns a deep copy of p.
func (p Pattern) Clone() Pattern {
	c := p
	for _, ax := range axes {
		if r := *ax.pattern(&p); r != nil {
			v := *r
			*ax.pattern(&c) = &v
		}
	}
	if p.Size != nil {
		s := *p.Size
		c.Size = &s
	}
	c.Alternatives = append([]string(nil), p.Alternatives...)
	return c
}

// Pattern validation errors.
var (
	ErrNoKind    = errors.New("pattern kind is required")
	ErrBadType   = errors.New("pattern type is not supported")
	ErrNoAxes    = errors.New("pattern has nothing to match")
	ErrBadFinger = errors.New("pattern finger count must not be negative")
)

// Validate checks that p can be registered.
func (p Pattern) Validate() error {
	if p.Kind == "" {
		return ErrNoKind
	}
	if !validType(p.Type) {
		return fmt.Errorf("%w: %q", ErrBadType, p.Type)
	}
	if p.Fingers < 0 {
		return ErrBadFinger
	}
	if p.Edge != "" || p.Corner != "" {
		return nil
	}
	for _, ax := range axes {
		if *ax.pattern(&p) != nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoAxes, p.Kind)
}

// Sample is a measured gesture. Axes that were not measured are nil.
// Direction is in degrees; Duration and Interval are in milliseconds.
type Sample struct {
	Type      Type      `json:"type,omitempty" yaml:"type,omitempty"`
	Fingers   int       `json:"fingers,omitempty" yaml:"fingers,omitempty"`
	Duration  *float64  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Distance  *float64  `json:"distance,omitempty" yaml:"distance,omitempty"`
	Velocity  *float64  `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Direction *float64  `json:"direction,omitempty" yaml:"direction,omitempty"`
	Scale     *float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Interval  *float64  `json:"interval,omitempty" yaml:"interval,omitempty"`
	Movement  *float64  `json:"movement,omitempty" yaml:"movement,omitempty"`
	StartX    *float64  `json:"startX,omitempty" yaml:"startX,omitempty"`
	StartY    *float64  `json:"startY,omitempty" yaml:"startY,omitempty"`
	Edge      Edge      `json:"edge,omitempty" yaml:"edge,omitempty"`
	Corner    Corner    `json:"corner,omitempty" yaml:"corner,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Float returns a pointer to v, for filling Sample axes.
func Float(v float64) *float64 { return &v }

// merge overlays the measured fields of next onto s.
func (s Sample) merge(next Sample) Sample {
	if next.Type != "" {
		s.Type = next.Type
	}
	if next.Fingers != 0 {
		s.Fingers = next.Fingers
	}
	for _, ax := range axes {
		if v := ax.sample(&next); v != nil {
			x := *v
			*ax.samplePtr(&s) = &x
		}
	}
	if next.StartX != nil {
		s.StartX = next.StartX
	}
	if next.StartY != nil {
		s.StartY = next.StartY
	}
	if next.Edge != "" {
		s.Edge = next.Edge
	}
	if next.Corner != "" {
		s.Corner = next.Corner
	}
	if !next.Timestamp.IsZero() {
		s.Timestamp = next.Timestamp
	}
	return s
}

type axis struct {
	name      string
	angular   bool
	pattern   func(*Pattern) **Range
	samplePtr func(*Sample) **float64
}

func (a axis) sample(s *Sample) *float64 { return *a.samplePtr(s) }

var axes = []axis{
	{name: "duration", pattern: func(p *Pattern) **Range { return &p.Duration }, samplePtr: func(s *Sample) **float64 { return &s.Duration }},
	{name: "distance", pattern: func(p *Pattern) **Range { return &p.Distance }, samplePtr: func(s *Sample) **float64 { return &s.Distance }},
	{name: "velocity", pattern: func(p *Pattern) **Range { return &p.Velocity }, samplePtr: func(s *Sample) **float64 { return &s.Velocity }},
	{name: "direction", angular: true, pattern: func(p *Pattern) **Range { return &p.Direction }, samplePtr: func(s *Sample) **float64 { return &s.Direction }},
	{name: "scale", pattern: func(p *Pattern) **Range { return &p.Scale }, samplePtr: func(s *Sample) **float64 { return &s.Scale }},
	{name: "interval", pattern: func(p *Pattern) **Range { return &p.Interval }, samplePtr: func(s *Sample) **float64 { return &s.Interval }},
	{name: "movement", pattern: func(p *Pattern) **Range { return &p.Movement }, samplePtr: func(s *Sample) **float64 { return &s.Movement }},
}

// value returns the sample value for r, turned toward the range center on
// angular axes.
func (a axis) value(v float64, r Range) float64 {
	if a.angular {
		return alignAngle(v, r.Center())
	}
	return v
}
