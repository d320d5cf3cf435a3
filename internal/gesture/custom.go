package gesture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Import for documents it cannot apply.
var ErrInvalidConfig = errors.New("invalid gesture configuration")

// Sequence names an ordered combination of gestures.
type Sequence struct {
	Name   string `json:"name" yaml:"name"`
	Steps  []Kind `json:"steps" yaml:"steps"`
	Action Action `json:"action,omitempty" yaml:"action,omitempty"`
}

func (s Sequence) validate() error {
	if s.Name == "" {
		return errors.New("sequence name is required")
	}
	if len(s.Steps) < minSequenceLength {
		return fmt.Errorf("sequence %s needs at least %d steps", s.Name, minSequenceLength)
	}
	return nil
}

func (s Sequence) matches(steps []Kind) bool {
	if len(s.Steps) != len(steps) {
		return false
	}
	for i := range steps {
		if s.Steps[i] != steps[i] {
			return false
		}
	}
	return true
}

// Pattern returns a copy of the pattern registered as k.
func (e *Engine) Pattern(k Kind) (Pattern, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.patterns[k]
	if !ok {
		return Pattern{}, false
	}
	return p.Clone(), true
}

// Patterns returns copies of every registered pattern in registration order.
func (e *Engine) Patterns() []Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Pattern, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.patterns[k].Clone())
	}
	return out
}

// CustomPatterns returns copies of the runtime-registered patterns.
func (e *Engine) CustomPatterns() []Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customLocked()
}

func (e *Engine) customLocked() []Pattern {
	var out []Pattern
	for _, k := range e.order {
		if !IsBuiltin(k) {
			out = append(out, e.patterns[k].Clone())
		}
	}
	return out
}

// AddPattern registers a custom pattern, replacing an earlier custom
// pattern of the same kind in place. Built-in kinds are rejected.
func (e *Engine) AddPattern(p Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if IsBuiltin(p.Kind) {
		return fmt.Errorf("%w: %s", ErrBuiltin, p.Kind)
	}
	c := p.Clone()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.patterns[c.Kind]; !ok {
		e.order = append(e.order, c.Kind)
	}
	e.patterns[c.Kind] = &c
	e.logger.Info("custom gesture added", zap.String("gesture", string(c.Kind)))
	return nil
}

// RemovePattern unregisters a custom pattern.
func (e *Engine) RemovePattern(k Kind) error {
	if IsBuiltin(k) {
		return fmt.Errorf("%w: %s", ErrBuiltin, k)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.patterns[k]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	delete(e.patterns, k)
	for i, o := range e.order {
		if o == k {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.logger.Info("custom gesture removed", zap.String("gesture", string(k)))
	return nil
}

// AddSequence registers a gesture sequence. Sequences are tried in
// registration order.
func (e *Engine) AddSequence(s Sequence) error {
	if err := s.validate(); err != nil {
		return err
	}
	s.Steps = append([]Kind(nil), s.Steps...)
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, have := range e.sequences {
		if have.Name == s.Name {
			e.sequences[i] = s
			return nil
		}
	}
	e.sequences = append(e.sequences, s)
	return nil
}

// RecognizeSequence recognizes each sample and looks the resulting steps
// up among the registered sequences. Unrecognized samples become the step
// "unknown". At least two samples are needed.
func (e *Engine) RecognizeSequence(samples []Sample) (Result, bool) {
	if len(samples) < minSequenceLength {
		return Result{}, false
	}
	steps := make([]Kind, len(samples))
	for i, s := range samples {
		steps[i] = "unknown"
		if r, ok := e.Recognize(s); ok {
			steps[i] = r.Kind
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, seq := range e.sequences {
		if seq.matches(steps) {
			return Result{
				Kind:       Kind(seq.Name),
				Confidence: sequenceConfidence,
				Action:     seq.Action,
				Sequence:   steps,
				State:      StateRecognized,
			}, true
		}
	}
	return Result{}, false
}

type exported struct {
	Threshold       float64    `json:"recognitionThreshold"`
	PredictionFloor float64    `json:"predictionFloor"`
	BufferSize      int        `json:"maxBufferSize"`
	OneHanded       bool       `json:"oneHanded"`
	Disabled        []Kind     `json:"disabledGestures"`
	Custom          []Pattern  `json:"customGestures"`
	Sequences       []Sequence `json:"sequences"`
}

// Export writes the engine settings and custom patterns as indented JSON
// stamped with now.
func (e *Engine) Export(now time.Time) ([]byte, error) {
	e.mu.Lock()
	doc := exported{
		Threshold:       e.cfg.Threshold,
		PredictionFloor: e.cfg.PredictionFloor,
		BufferSize:      e.cfg.BufferSize,
		OneHanded:       e.cfg.OneHanded,
		Disabled:        []Kind{},
		Custom:          e.customLocked(),
		Sequences:       append([]Sequence{}, e.sequences...),
	}
	for _, k := range e.order {
		if e.disabled[k] {
			doc.Disabled = append(doc.Disabled, k)
		}
	}
	e.mu.Unlock()
	if doc.Custom == nil {
		doc.Custom = []Pattern{}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gesture configuration: %w", err)
	}
	raw, err = sjson.SetBytes(raw, "exportedAt", now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to stamp gesture configuration: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent gesture configuration: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Import applies a document written by Export. Fields that are absent keep
// their current values; customGestures, when present, replaces every custom
// pattern. Nothing is applied if any part is invalid.
func (e *Engine) Import(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidConfig)
	}
	doc := gjson.ParseBytes(data)

	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	if v := doc.Get("recognitionThreshold"); v.Exists() {
		t := v.Float()
		if t <= 0 || t > 1 {
			return fmt.Errorf("%w: recognitionThreshold %v out of range", ErrInvalidConfig, t)
		}
		cfg.Threshold = t
	}
	if v := doc.Get("predictionFloor"); v.Exists() && v.Float() > 0 {
		cfg.PredictionFloor = v.Float()
	}
	if v := doc.Get("maxBufferSize"); v.Exists() && v.Int() > 0 {
		cfg.BufferSize = int(v.Int())
	}
	if v := doc.Get("oneHanded"); v.Exists() {
		cfg.OneHanded = v.Bool()
	}

	var custom []Pattern
	customSet := doc.Get("customGestures").IsArray()
	if customSet {
		for i, item := range doc.Get("customGestures").Array() {
			var p Pattern
			if err := json.Unmarshal([]byte(item.Raw), &p); err != nil {
				return fmt.Errorf("%w: custom gesture %d: %w", ErrInvalidConfig, i, err)
			}
			if err := p.Validate(); err != nil {
				return fmt.Errorf("%w: custom gesture %d: %w", ErrInvalidConfig, i, err)
			}
			if IsBuiltin(p.Kind) {
				return fmt.Errorf("%w: custom gesture %d: %w", ErrInvalidConfig, i, ErrBuiltin)
			}
			custom = append(custom, p)
		}
	}
	var sequences []Sequence
	seqSet := doc.Get("sequences").IsArray()
	if seqSet {
		if err := json.Unmarshal([]byte(doc.Get("sequences").Raw), &sequences); err != nil {
			return fmt.Errorf("%w: sequences: %w", ErrInvalidConfig, err)
		}
		for _, s := range sequences {
			if err := s.validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	if v := doc.Get("disabledGestures"); v.IsArray() {
		e.disabled = make(map[Kind]bool)
		for _, k := range v.Array() {
			e.disabled[Kind(k.String())] = true
		}
	}
	if customSet {
		order := e.order[:0:0]
		for _, k := range e.order {
			if IsBuiltin(k) {
				order = append(order, k)
			} else {
				delete(e.patterns, k)
			}
		}
		for _, p := range custom {
			c := p.Clone()
			if _, ok := e.patterns[c.Kind]; !ok {
				order = append(order, c.Kind)
			}
			e.patterns[c.Kind] = &c
		}
		e.order = order
	}
	if seqSet {
		e.sequences = sequences
	}
	e.logger.Info("gesture configuration imported", zap.Int("custom", len(custom)), zap.Int("sequences", len(sequences)))
	return nil
}

// PatternFile is the YAML layout of a custom pattern file.
type PatternFile struct {
	Patterns  []Pattern  `yaml:"patterns"`
	Sequences []Sequence `yaml:"sequences"`
}

// ReadPatternFile decodes a YAML pattern file. Unknown keys are errors.
func ReadPatternFile(r io.Reader) (PatternFile, error) {
	var pf PatternFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return PatternFile{}, fmt.Errorf("failed to decode pattern file: %w", err)
	}
	return pf, nil
}

// LoadPatternFile registers every pattern and sequence of a YAML file. It
// returns how many patterns were added.
func (e *Engine) LoadPatternFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open pattern file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			_ = cerr
		}
	}()
	pf, err := ReadPatternFile(f)
	if err != nil {
		return 0, err
	}
	for _, p := range pf.Patterns {
		if err := e.AddPattern(p); err != nil {
			return 0, fmt.Errorf("failed to add pattern %s: %w", p.Kind, err)
		}
	}
	for _, s := range pf.Sequences {
		if err := e.AddSequence(s); err != nil {
			return 0, fmt.Errorf("failed to add sequence: %w", err)
		}
	}
	return len(pf.Patterns), nil
}
