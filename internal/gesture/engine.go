package gesture

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// Engine defaults.
const (
	DefaultThreshold       = 0.8
	DefaultPredictionFloor = 0.5
	DefaultBufferSize      = 20

	adaptFraction      = 0.1
	thresholdStep      = 0.05
	maxThreshold       = 0.95
	minThreshold       = 0.5
	sequenceConfidence = 0.9
	minSequenceLength  = 2
	minLearnBuffer     = 5
)

// Engine errors.
var (
	ErrUnknownKind = errors.New("unknown gesture kind")
	ErrBuiltin     = errors.New("built-in gestures cannot be replaced or removed")
)

// Config tunes an Engine.
type Config struct {
	Threshold       float64
	PredictionFloor float64
	BufferSize      int
	OneHanded       bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:       DefaultThreshold,
		PredictionFloor: DefaultPredictionFloor,
		BufferSize:      DefaultBufferSize,
	}
}

// State is the phase of a gesture attempt.
type State int

// Attempt states.
const (
	StateIdle State = iota
	StateSampling
	StateMatching
	StateRecognized
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateMatching:
		return "matching"
	case StateRecognized:
		return "recognized"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is a recognized or predicted gesture.
type Result struct {
	Kind         Kind     `json:"gesture"`
	Confidence   float64  `json:"confidence"`
	Action       Action   `json:"action,omitempty"`
	Alternatives []string `json:"alternativeActions,omitempty"`
	Prediction   bool     `json:"prediction,omitempty"`
	Sequence     []Kind   `json:"sequence,omitempty"`
	State        State    `json:"-"`
}

// Adjustment records one widened pattern range.
type Adjustment struct {
	Kind      Kind    `json:"gesture"`
	Parameter string  `json:"parameter"`
	Old       Range   `json:"oldRange"`
	New       Range   `json:"newRange"`
	Amount    float64 `json:"improvement"`
}

// Stats describes the engine state and its recognition history.
type Stats struct {
	Patterns          int     `json:"totalPatterns"`
	CustomPatterns    int     `json:"customPatterns"`
	Sequences         int     `json:"sequencePatterns"`
	Threshold         float64 `json:"recognitionThreshold"`
	BufferSize        int     `json:"bufferSize"`
	Recognized        int     `json:"successfulRecognitions"`
	Rejected          int     `json:"failedRecognitions"`
	Predictions       int     `json:"predictions"`
	RecognitionRate   float64 `json:"recognitionRate"`
	AverageConfidence float64 `json:"averageConfidence"`
}

// Engine matches samples against registered patterns. It is safe for
// concurrent use.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	order     []Kind
	patterns  map[Kind]*Pattern
	disabled  map[Kind]bool
	sequences []Sequence
	buffer    []Sample

	recognized    int
	rejected      int
	predictions   int
	confidenceSum float64

	logger *zap.Logger
}

// New returns an engine loaded with the built-in patterns. Zero config
// fields take their defaults and a nil logger discards output.
func New(cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.PredictionFloor <= 0 {
		cfg.PredictionFloor = def.PredictionFloor
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		patterns: make(map[Kind]*Pattern),
		disabled: make(map[Kind]bool),
		logger:   logger,
	}
	for _, p := range Builtins() {
		e.order = append(e.order, p.Kind)
		e.patterns[p.Kind] = &p
	}
	return e
}

// Threshold is the current recognition threshold.
func (e *Engine) Threshold() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Threshold
}

// SetOneHanded toggles the patterns reserved for one-handed mode.
func (e *Engine) SetOneHanded(on bool) {
	e.mu.Lock()
	e.cfg.OneHanded = on
	e.mu.Unlock()
}

// SetDisabled replaces the set of kinds the engine skips.
func (e *Engine) SetDisabled(kinds ...Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disabled = make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		e.disabled[k] = true
	}
}

// Attempt follows one gesture from its first touch to a decision. It moves
// from idle to sampling on Update, and through matching to recognized or
// rejected on Finish. An Attempt is not safe for concurrent use.
type Attempt struct {
	e      *Engine
	state  State
	sample Sample
	result Result
	ok     bool
}

// Begin starts an idle attempt.
func (e *Engine) Begin() *Attempt {
	return &Attempt{e: e, state: StateIdle}
}

// State is the current phase of the attempt.
func (a *Attempt) State() State { return a.state }

// Sample is everything measured so far.
func (a *Attempt) Sample() Sample { return a.sample }

// Update merges newly measured axes into the attempt and returns a
// prediction when the partial sample clears the prediction floor. Updates
// after Finish are ignored.
func (a *Attempt) Update(s Sample) (Result, bool) {
	if a.state >= StateMatching {
		return Result{}, false
	}
	a.state = StateSampling
	a.sample = a.sample.merge(s)
	return a.e.Predict(a.sample)
}

// Finish matches the collected sample. Calling it again returns the same
// decision.
func (a *Attempt) Finish() (Result, bool) {
	if a.state == StateRecognized || a.state == StateRejected {
		return a.result, a.ok
	}
	a.state = StateMatching
	a.result, a.ok = a.e.match(a.sample)
	a.state = StateRejected
	if a.ok {
		a.state = StateRecognized
	}
	a.result.State = a.state
	return a.result, a.ok
}

// Recognize classifies a complete sample. The pattern with the highest
// confidence above the threshold wins; on equal confidence the pattern
// registered first wins.
func (e *Engine) Recognize(s Sample) (Result, bool) {
	a := &Attempt{e: e, state: StateSampling, sample: s}
	return a.Finish()
}

// RecognizeMultiple recognizes each sample and keeps the matches.
func (e *Engine) RecognizeMultiple(samples []Sample) []Result {
	var out []Result
	for _, s := range samples {
		if r, ok := e.Recognize(s); ok {
			out = append(out, r)
		}
	}
	return out
}

// Predict scores a gesture still in progress on whatever axes it has. The
// result is marked as a prediction and gated by the prediction floor.
func (e *Engine) Predict(partial Sample) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.bestLocked(partial, true)
	if !ok {
		return Result{}, false
	}
	e.predictions++
	r.Prediction = true
	r.State = StateSampling
	return r, true
}

func (e *Engine) match(s Sample) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.bestLocked(s, false)
	if !ok {
		e.rejected++
		e.logger.Debug("gesture rejected", zap.String("type", string(s.Type)), zap.Int("fingers", s.Fingers))
		return Result{}, false
	}
	e.recognized++
	e.confidenceSum += r.Confidence
	e.logger.Debug("gesture recognized", zap.String("gesture", string(r.Kind)), zap.Float64("confidence", r.Confidence))
	return r, true
}

func (e *Engine) bestLocked(s Sample, partial bool) (Result, bool) {
	floor := e.cfg.Threshold
	if partial {
		floor = e.cfg.PredictionFloor
	}
	var best *Pattern
	bestConf := 0.0
	for _, k := range e.order {
		p := e.patterns[k]
		if e.disabled[k] || (p.OneHandedOnly && !e.cfg.OneHanded) {
			continue
		}
		if !compatible(s, p, partial) {
			continue
		}
		conf, scored := confidence(s, p)
		if scored == 0 && hasAxes(p) {
			continue
		}
		if conf > floor && conf > bestConf {
			best, bestConf = p, conf
		}
	}
	if best == nil {
		return Result{}, false
	}
	return Result{
		Kind:         best.Kind,
		Confidence:   bestConf,
		Action:       best.Action,
		Alternatives: append([]string(nil), best.Alternatives...),
	}, true
}

func defaultFingers(t Type) int {
	if t == TypePinch {
		return 2
	}
	return 1
}

// compatible reports whether p is worth scoring for s. Partial samples
// only rule out patterns on what has been measured.
func compatible(s Sample, p *Pattern, partial bool) bool {
	if s.Type != "" && s.Type != p.Type {
		return false
	}
	if p.Fingers > 0 {
		fingers := s.Fingers
		if fingers == 0 && !partial {
			fingers = defaultFingers(p.Type)
		}
		if fingers != 0 && fingers != p.Fingers {
			return false
		}
	}
	if p.Edge != "" && s.Edge != p.Edge && (s.Edge != "" || !partial) {
		return false
	}
	if p.Corner != "" && s.Corner != p.Corner && (s.Corner != "" || !partial) {
		return false
	}
	// A measured interval means a repeated tap, so it only fits patterns
	// that expect one.
	if s.Interval != nil && p.Interval == nil {
		return false
	}
	if !partial && p.Interval != nil && s.Interval == nil {
		return false
	}
	return true
}

func hasAxes(p *Pattern) bool {
	for _, ax := range axes {
		if *ax.pattern(p) != nil {
			return true
		}
	}
	return false
}

type axisScore struct {
	name      string
	score     float64
	deviation float64
}

func scoreAxes(s Sample, p *Pattern) []axisScore {
	var out []axisScore
	for _, ax := range axes {
		r := *ax.pattern(p)
		v := ax.sample(&s)
		if r == nil || v == nil {
			continue
		}
		x := ax.value(*v, *r)
		out = append(out, axisScore{name: ax.name, score: RangeMatch(x, *r), deviation: math.Abs(x - r.Center())})
	}
	return out
}

// confidence is the product of the axis scores both sides define, clamped
// to [0, 1], and the number of axes that were scored.
func confidence(s Sample, p *Pattern) (float64, int) {
	scores := scoreAxes(s, p)
	c := 1.0
	for _, a := range scores {
		c *= a.score
	}
	return math.Max(0, math.Min(1, c)), len(scores)
}

// Detail explains how a sample scores against one pattern.
type Detail struct {
	Kind       Kind               `json:"gesture"`
	Compatible bool               `json:"compatible"`
	Matches    bool               `json:"matches"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
	Deviations map[string]float64 `json:"deviations"`
}

// Detail scores s against the pattern registered as k.
func (e *Engine) Detail(s Sample, k Kind) (Detail, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.patterns[k]
	if !ok {
		return Detail{}, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	d := Detail{
		Kind:       k,
		Compatible: compatible(s, p, false),
		Scores:     map[string]float64{},
		Deviations: map[string]float64{},
	}
	d.Confidence, _ = confidence(s, p)
	for _, a := range scoreAxes(s, p) {
		d.Scores[a.name] = a.score
		d.Deviations[a.name] = a.deviation
	}
	d.Matches = d.Compatible && d.Confidence > e.cfg.Threshold
	return d, nil
}

// Adapt widens the duration and distance ranges of k by a tenth of the
// values observed in s. Lower bounds never drop below zero.
func (e *Engine) Adapt(k Kind, s Sample) ([]Adjustment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.patterns[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return e.adaptLocked(p, s), nil
}

func (e *Engine) adaptLocked(p *Pattern, s Sample) []Adjustment {
	var out []Adjustment
	widen := func(name string, r *Range, v *float64) {
		if r == nil || v == nil {
			return
		}
		amount := math.Abs(*v) * adaptFraction
		old := *r
		r.Low = math.Max(0, r.Low-amount)
		r.High += amount
		out = append(out, Adjustment{Kind: p.Kind, Parameter: name, Old: old, New: *r, Amount: amount})
	}
	widen("duration", p.Duration, s.Duration)
	widen("distance", p.Distance, s.Distance)
	if len(out) > 0 {
		e.logger.Debug("gesture ranges widened", zap.String("gesture", string(p.Kind)), zap.Int("adjustments", len(out)))
	}
	return out
}

// AdjustThreshold nudges the recognition threshold from an observed
// success rate: up when above 0.9, down when below 0.7. It returns the new
// threshold.
func (e *Engine) AdjustThreshold(successRate float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case successRate > 0.9:
		e.cfg.Threshold = math.Min(maxThreshold, e.cfg.Threshold+thresholdStep)
	case successRate < 0.7:
		e.cfg.Threshold = math.Max(minThreshold, e.cfg.Threshold-thresholdStep)
	}
	e.logger.Info("recognition threshold adjusted", zap.Float64("threshold", e.cfg.Threshold))
	return e.cfg.Threshold
}

// AddToBuffer keeps s for later learning, dropping the oldest sample once
// the buffer is full.
func (e *Engine) AddToBuffer(s Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = append(e.buffer, s)
	if over := len(e.buffer) - e.cfg.BufferSize; over > 0 {
		e.buffer = append([]Sample(nil), e.buffer[over:]...)
	}
}

// Buffer returns the buffered samples, oldest first.
func (e *Engine) Buffer() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Sample(nil), e.buffer...)
}

// ClearBuffer drops all buffered samples.
func (e *Engine) ClearBuffer() {
	e.mu.Lock()
	e.buffer = nil
	e.mu.Unlock()
}

// LearnFromBuffer adapts the pattern each buffered sample matches and then
// empties the buffer. Nothing happens with fewer than five samples.
func (e *Engine) LearnFromBuffer() []Adjustment {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.buffer) < minLearnBuffer {
		return nil
	}
	var out []Adjustment
	for _, s := range e.buffer {
		r, ok := e.bestLocked(s, false)
		if !ok {
			continue
		}
		out = append(out, e.adaptLocked(e.patterns[r.Kind], s)...)
	}
	e.buffer = nil
	return out
}

// Stats reports the engine state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Stats{
		Patterns:    len(e.order),
		Sequences:   len(e.sequences),
		Threshold:   e.cfg.Threshold,
		BufferSize:  len(e.buffer),
		Recognized:  e.recognized,
		Rejected:    e.rejected,
		Predictions: e.predictions,
	}
	for _, k := range e.order {
		if !IsBuiltin(k) {
			st.CustomPatterns++
		}
	}
	if total := e.recognized + e.rejected; total > 0 {
		st.RecognitionRate = float64(e.recognized) / float64(total)
	}
	if e.recognized > 0 {
		st.AverageConfidence = e.confidenceSum / float64(e.recognized)
	}
	return st
}
