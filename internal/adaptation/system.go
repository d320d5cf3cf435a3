package adaptation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/popkit/internal/gesture"
	"github.com/verte-zerg/popkit/internal/model"
)

// Learning limits.
const (
	LearningRate       = 0.01
	MaxLearningRecords = 1000
	MaxUnrecognized    = 100
)

const (
	maxSuccessRate    = 0.95
	maxErrorRate      = 0.3
	preciseDistance   = 10
	sloppyDistance    = 50
	fastDuration      = 200
	slowDuration      = 1000
	rightHandShare    = 0.6
	leftHandShare     = 0.4
	lowSuccessRate    = 0.7
	sensitivityFactor = 0.8
	successConfidence = 0.9
	failureConfidence = 0.3
	longTouchDuration = 500
	swipeLikeDistance = 100
)

// Errors returned by System.
var (
	ErrUnsupportedAction = errors.New("suggestion cannot be applied automatically")
	ErrUnknownSuggestion = errors.New("suggestion is not pending")
)

// simpleModeDisabled are the gestures simple mode turns off.
var simpleModeDisabled = []gesture.Kind{
	gesture.DoubleTap,
	gesture.PinchIn,
	gesture.PinchOut,
	gesture.TwoFingerTap,
	gesture.ThreeFingerTap,
}

// Option configures a System.
type Option func(*System)

// WithStore persists preferences and the profile through ps.
func WithStore(ps PreferenceStore) Option {
	return func(s *System) { s.store = ps }
}

// WithRecords persists learning data and unrecognized gestures through rs.
func WithRecords(rs RecordStore) Option {
	return func(s *System) { s.records = rs }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		if now != nil {
			s.now = now
		}
	}
}

// System holds the adaptation state of one player. In-memory state is
// authoritative; stores only see it on Sync. It is safe for concurrent use.
type System struct {
	mu          sync.Mutex
	learning    bool
	profile     Profile
	thresholds  Thresholds
	suggestions []Suggestion
	prefs       Preferences
	stats       Stats

	learningData        []model.LearningRecord
	unrecognized        []model.UnrecognizedGesture
	pendingLearning     int
	pendingUnrecognized int

	store   PreferenceStore
	records RecordStore
	logger  *zap.Logger
	now     func() time.Time
}

// New returns a System with default profile and preferences.
func New(opts ...Option) *System {
	s := &System{
		learning:   true,
		profile:    DefaultProfile(),
		thresholds: DefaultThresholds(),
		prefs:      DefaultPreferences(),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = Stats{ByType: map[string]int{}, SessionStart: s.now()}
	s.setAdaptiveThresholdsLocked()
	return s
}

// SetAdaptiveThresholds derives error rate, completion and response time
// targets from the profile.
func (s *System) SetAdaptiveThresholds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAdaptiveThresholdsLocked()
}

func (s *System) setAdaptiveThresholdsLocked() {
	switch s.profile.Precision {
	case LevelLow:
		s.thresholds.ErrorRate = 0.2
		s.thresholds.Completion = 0.6
	case LevelHigh:
		s.thresholds.ErrorRate = 0.05
		s.thresholds.Completion = 0.95
	}
	switch s.profile.Speed {
	case SpeedSlow:
		s.thresholds.ResponseTime = 2000
	case SpeedFast:
		s.thresholds.ResponseTime = 500
	}
}

// Observe learns from one gesture outcome. It does nothing while learning
// is disabled.
func (s *System) Observe(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.learning {
		return
	}
	rec := model.LearningRecord{
		Gesture:    o.Gesture,
		Success:    o.Success,
		Confidence: failureConfidence,
		Duration:   value(o.Sample.Duration),
		Distance:   value(o.Sample.Distance),
		Timestamp:  s.now(),
	}
	if o.Success {
		rec.Confidence = successConfidence
	}
	s.learningData = appendCapped(s.learningData, rec, MaxLearningRecords)
	s.pendingLearning = min(s.pendingLearning+1, MaxLearningRecords)

	s.updateProfileLocked(o)
	if o.Success {
		s.thresholds.SuccessRate = min(maxSuccessRate, s.thresholds.SuccessRate+LearningRate)
	} else {
		s.thresholds.ErrorRate = min(maxErrorRate, s.thresholds.ErrorRate+LearningRate)
	}
	s.stats.AdaptationTriggers++
	s.countLocked(o)
	s.suggestions = s.suggestLocked()
}

func (s *System) updateProfileLocked(o Outcome) {
	if d := o.Sample.Distance; d != nil {
		switch {
		case *d < preciseDistance:
			s.profile.Precision = LevelHigh
		case *d > sloppyDistance:
			s.profile.Precision = LevelLow
		}
	}
	if d := o.Sample.Duration; d != nil {
		switch {
		case *d < fastDuration:
			s.profile.Speed = SpeedFast
		case *d > slowDuration:
			s.profile.Speed = SpeedSlow
		}
	}
	if x := o.Sample.StartX; x != nil && o.ViewportWidth > 0 {
		switch {
		case *x > o.ViewportWidth*rightHandShare:
			s.profile.DominantHand = HandRight
		case *x < o.ViewportWidth*leftHandShare:
			s.profile.DominantHand = HandLeft
		}
	}
}

func (s *System) countLocked(o Outcome) {
	s.stats.Recognized++
	if o.Success {
		s.stats.Successful++
	} else {
		s.stats.Failed++
	}
	s.stats.ByType[o.Gesture]++
	if d := o.Sample.Duration; d != nil {
		n := float64(s.stats.Recognized)
		s.stats.AverageGestureTime += (*d - s.stats.AverageGestureTime) / n
	}
	if cg, ok := s.prefs.CustomGestures[o.Gesture]; ok {
		cg.UsageCount++
		s.prefs.CustomGestures[o.Gesture] = cg
	}
}

func (s *System) successRateLocked() float64 {
	total := s.stats.Successful + s.stats.Failed
	if total == 0 {
		return 0
	}
	return float64(s.stats.Successful) / float64(total)
}

type rule struct {
	applies    func(s *System) bool
	suggestion Suggestion
}

var rules = []rule{
	{
		applies:    func(s *System) bool { return s.profile.Precision == LevelLow },
		suggestion: Suggestion{Type: SuggestPrecision, Message: "Try making gestures more slowly and precisely.", Action: ActionAdjustSensitivity, Priority: PriorityMedium},
	},
	{
		applies:    func(s *System) bool { return s.profile.Speed == SpeedSlow },
		suggestion: Suggestion{Type: SuggestSpeed, Message: "Switch to the simple gesture mode.", Action: ActionEnableSimpleMode, Priority: PriorityHigh},
	},
	{
		applies:    func(s *System) bool { return s.profile.Reachability == ReachLimited },
		suggestion: Suggestion{Type: SuggestAccessibility, Message: "Turn on one-handed mode.", Action: ActionEnableOneHanded, Priority: PriorityHigh},
	},
	{
		applies: func(s *System) bool {
			return s.stats.Successful+s.stats.Failed > 0 && s.successRateLocked() < lowSuccessRate
		},
		suggestion: Suggestion{Type: SuggestEfficiency, Message: "Lower the gesture complexity.", Action: ActionChangeComplexity, Priority: PriorityMedium},
	},
	{
		applies:    func(s *System) bool { return s.prefs.Complexity == ComplexityAdvanced },
		suggestion: Suggestion{Type: SuggestEfficiency, Message: "Create custom gestures to play faster.", Action: ActionCustomizeGesture, Priority: PriorityLow},
	},
	{
		applies:    func(s *System) bool { return s.prefs.Complexity == ComplexityAdvanced },
		suggestion: Suggestion{Type: SuggestComfort, Message: "Alternative bindings can make input more comfortable.", Action: ActionAddAlternative, Priority: PriorityLow},
	},
}

func (s *System) suggestLocked() []Suggestion {
	out := []Suggestion{}
	for _, r := range rules {
		if r.applies(s) {
			out = append(out, r.suggestion)
		}
	}
	return out
}

// Suggestions returns the pending suggestions.
func (s *System) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Suggestion{}, s.suggestions...)
}

// Refresh regenerates the suggestions from the current state.
func (s *System) Refresh() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = s.suggestLocked()
	return append([]Suggestion{}, s.suggestions...)
}

// Apply carries out a pending suggestion and drops it from the list.
// Suggestions that need the player's input return ErrUnsupportedAction.
func (s *System) Apply(sug Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, have := range s.suggestions {
		if have == sug {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSuggestion, sug.Action)
	}
	switch sug.Action {
	case ActionAdjustSensitivity:
		s.prefs.Sensitivity *= sensitivityFactor
	case ActionEnableSimpleMode, ActionChangeComplexity:
		s.prefs.Complexity = ComplexitySimple
	case ActionEnableOneHanded:
		hand := HandRight
		if s.profile.DominantHand == HandLeft {
			hand = HandLeft
		}
		s.enableOneHandedLocked(hand)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, sug.Action)
	}
	s.suggestions = append(s.suggestions[:idx], s.suggestions[idx+1:]...)
	s.stats.CustomizationChanges++
	s.logger.Info("suggestion applied", zap.String("action", string(sug.Action)))
	return nil
}

// SuggestAlternatives names gestures that may fit a sample the player
// struggled with.
func (s *System) SuggestAlternatives(sample gesture.Sample) []string {
	var out []string
	if sample.Type == gesture.TypeTouch && value(sample.Duration) > longTouchDuration {
		out = append(out, string(gesture.LongPress))
	}
	if value(sample.Distance) > swipeLikeDistance {
		out = append(out, "swipe")
	}
	if sample.Fingers > 1 {
		out = append(out, "pinch", string(gesture.TwoFingerTap))
	}
	s.logger.Debug("gesture alternatives", zap.Strings("alternatives", out))
	return out
}

// RecordUnrecognized keeps a sample no pattern matched. ctx may be nil.
func (s *System) RecordUnrecognized(sample gesture.Sample, ctx *Context) {
	rec := model.UnrecognizedGesture{
		Type:     string(sample.Type),
		Fingers:  sample.Fingers,
		Duration: value(sample.Duration),
		Distance: value(sample.Distance),
	}
	if ctx != nil {
		rec.GameState = ctx.GameState
		rec.UIElement = ctx.UIElement
		rec.AttemptCount = ctx.AttemptCount
		rec.PreviousGesture = ctx.PreviousGesture
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Timestamp = s.now()
	s.unrecognized = appendCapped(s.unrecognized, rec, MaxUnrecognized)
	s.pendingUnrecognized = min(s.pendingUnrecognized+1, MaxUnrecognized)
}

// LearningRecords returns the retained learning data, oldest first.
func (s *System) LearningRecords() []model.LearningRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LearningRecord(nil), s.learningData...)
}

// Unrecognized returns the retained unrecognized gestures, oldest first.
func (s *System) Unrecognized() []model.UnrecognizedGesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.UnrecognizedGesture(nil), s.unrecognized...)
}

// AddCustomGesture stores a player-defined gesture. The pattern kind
// defaults to name.
func (s *System) AddCustomGesture(name string, p gesture.Pattern, action string) error {
	if name == "" {
		return errors.New("custom gesture name is required")
	}
	if p.Kind == "" {
		p.Kind = gesture.Kind(name)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("failed to add custom gesture %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.CustomGestures[name] = CustomGesture{
		Name:      name,
		Pattern:   p.Clone(),
		Action:    action,
		CreatedAt: s.now(),
	}
	s.stats.CustomizationChanges++
	return nil
}

// RemoveCustomGesture deletes a custom gesture and reports whether it
// existed.
func (s *System) RemoveCustomGesture(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs.CustomGestures[name]; !ok {
		return false
	}
	delete(s.prefs.CustomGestures, name)
	s.stats.CustomizationChanges++
	return true
}

// DisableGesture turns a gesture off.
func (s *System) DisableGesture(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.prefs.DisabledGestures {
		if d == name {
			return
		}
	}
	s.prefs.DisabledGestures = append(s.prefs.DisabledGestures, name)
	sort.Strings(s.prefs.DisabledGestures)
	s.stats.CustomizationChanges++
}

// EnableGesture turns a disabled gesture back on.
func (s *System) EnableGesture(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.prefs.DisabledGestures {
		if d == name {
			s.prefs.DisabledGestures = append(s.prefs.DisabledGestures[:i], s.prefs.DisabledGestures[i+1:]...)
			s.stats.CustomizationChanges++
			return
		}
	}
}

// BindAlternative maps a gesture to an alternative input such as a key.
func (s *System) BindAlternative(name, alternative string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.AlternativeBindings[name] = alternative
	s.stats.CustomizationChanges++
}

// EnableOneHanded turns on one-handed mode for hand.
func (s *System) EnableOneHanded(hand Hand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableOneHandedLocked(hand)
}

func (s *System) enableOneHandedLocked(hand Hand) {
	if hand != HandLeft {
		hand = HandRight
	}
	s.prefs.OneHanded = true
	s.prefs.PreferredHand = hand
	s.logger.Info("one-handed mode enabled", zap.String("hand", string(hand)))
}

// DisableOneHanded turns one-handed mode off.
func (s *System) DisableOneHanded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.OneHanded = false
}

// SetLearning toggles learning from observations.
func (s *System) SetLearning(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learning = on
}

// Learning reports whether observations are learned from.
func (s *System) Learning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learning
}

// Profile returns the current profile.
func (s *System) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// UpdateProfile replaces the profile and re-derives the thresholds.
func (s *System) UpdateProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	s.setAdaptiveThresholdsLocked()
}

// Thresholds returns the adaptive thresholds.
func (s *System) Thresholds() Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// Preferences returns a copy of the preferences.
func (s *System) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.clone()
}

// SetPreferences replaces the preferences. Missing collections and a
// non-positive sensitivity or timeout take their defaults.
func (s *System) SetPreferences(p Preferences) {
	p = normalizePreferences(p.clone())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	s.stats.CustomizationChanges++
}

func normalizePreferences(p Preferences) Preferences {
	def := DefaultPreferences()
	if p.CustomGestures == nil {
		p.CustomGestures = def.CustomGestures
	}
	if p.DisabledGestures == nil {
		p.DisabledGestures = def.DisabledGestures
	}
	if p.AlternativeBindings == nil {
		p.AlternativeBindings = def.AlternativeBindings
	}
	if p.Sensitivity <= 0 {
		p.Sensitivity = def.Sensitivity
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.PreferredHand != HandLeft {
		p.PreferredHand = HandRight
	}
	switch p.Complexity {
	case ComplexitySimple, ComplexityNormal, ComplexityAdvanced:
	default:
		p.Complexity = def.Complexity
	}
	return p
}

// Stats returns the session statistics with the success rate and session
// duration filled in.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.ByType = make(map[string]int, len(s.stats.ByType))
	for k, v := range s.stats.ByType {
		st.ByType[k] = v
	}
	st.SuccessRate = s.successRateLocked()
	st.SessionDuration = s.now().Sub(st.SessionStart)
	return st
}

// ResetStats starts a new session.
func (s *System) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{ByType: map[string]int{}, SessionStart: s.now()}
}

// Status is a snapshot of the adaptation state.
func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Learning:    s.learning,
		Profile:     s.profile,
		Thresholds:  s.thresholds,
		Suggestions: append([]Suggestion{}, s.suggestions...),
		OneHanded:   s.prefs.OneHanded,
		Complexity:  s.prefs.Complexity,
	}
}

// Configure pushes the preferences into a recognition engine: one-handed
// mode, disabled gestures and custom patterns. Simple mode also turns off
// multi-finger and repeated-tap gestures.
func (s *System) Configure(e *gesture.Engine) error {
	prefs := s.Preferences()
	e.SetOneHanded(prefs.OneHanded)

	disabled := make([]gesture.Kind, 0, len(prefs.DisabledGestures))
	for _, d := range prefs.DisabledGestures {
		disabled = append(disabled, gesture.Kind(d))
	}
	if prefs.Complexity == ComplexitySimple {
		disabled = append(disabled, simpleModeDisabled...)
	}
	e.SetDisabled(disabled...)

	names := make([]string, 0, len(prefs.CustomGestures))
	for name := range prefs.CustomGestures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.AddPattern(prefs.CustomGestures[name].Pattern); err != nil {
			return fmt.Errorf("failed to register custom gesture %s: %w", name, err)
		}
	}
	return nil
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func appendCapped[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	if over := len(list) - limit; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	return list
}
