package adaptation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/verte-zerg/popkit/internal/gesture"
	"github.com/verte-zerg/popkit/internal/model"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestSystem(opts ...Option) *System {
	c := &tick{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return New(append([]Option{WithClock(c.now)}, opts...)...)
}

func touch(duration, distance float64) gesture.Sample {
	return gesture.Sample{Type: gesture.TypeTouch, Duration: gesture.Float(duration), Distance: gesture.Float(distance)}
}

func actions(sugs []Suggestion) []SuggestionAction {
	out := make([]SuggestionAction, len(sugs))
	for i, s := range sugs {
		out[i] = s.Action
	}
	return out
}

func TestDefaults(t *testing.T) {
	s := newTestSystem()
	require.Equal(t, DefaultProfile(), s.Profile())
	require.Equal(t, DefaultThresholds(), s.Thresholds())
	require.True(t, s.Learning())
	require.Empty(t, s.Suggestions())
	require.Equal(t, 1.0, s.Preferences().Sensitivity)
}

func TestObserveUpdatesProfile(t *testing.T) {
	s := newTestSystem()
	s.Observe(Outcome{Gesture: "tap", Sample: touch(150, 5), Success: true})
	p := s.Profile()
	require.Equal(t, LevelHigh, p.Precision)
	require.Equal(t, SpeedFast, p.Speed)

	s.Observe(Outcome{Gesture: "tap", Sample: touch(500, 30), Success: true})
	p = s.Profile()
	require.Equal(t, LevelHigh, p.Precision)
	require.Equal(t, SpeedFast, p.Speed)

	s.Observe(Outcome{Gesture: "tap", Sample: touch(1500, 60), Success: true})
	p = s.Profile()
	require.Equal(t, LevelLow, p.Precision)
	require.Equal(t, SpeedSlow, p.Speed)

	left := gesture.Sample{StartX: gesture.Float(300)}
	s.Observe(Outcome{Gesture: "tap", Sample: left, ViewportWidth: 1000})
	require.Equal(t, HandLeft, s.Profile().DominantHand)

	middle := gesture.Sample{StartX: gesture.Float(500)}
	s.Observe(Outcome{Gesture: "tap", Sample: middle, ViewportWidth: 1000})
	require.Equal(t, HandLeft, s.Profile().DominantHand)

	right := gesture.Sample{StartX: gesture.Float(700)}
	s.Observe(Outcome{Gesture: "tap", Sample: right})
	require.Equal(t, HandLeft, s.Profile().DominantHand)
	s.Observe(Outcome{Gesture: "tap", Sample: right, ViewportWidth: 1000})
	require.Equal(t, HandRight, s.Profile().DominantHand)
}

func TestThresholdCreep(t *testing.T) {
	s := newTestSystem()
	s.Observe(Outcome{Gesture: "tap", Success: true})
	require.InDelta(t, 0.91, s.Thresholds().SuccessRate, 1e-9)
	for i := 0; i < 10; i++ {
		s.Observe(Outcome{Gesture: "tap", Success: true})
	}
	require.InDelta(t, 0.95, s.Thresholds().SuccessRate, 1e-9)

	for i := 0; i < 30; i++ {
		s.Observe(Outcome{Gesture: "tap"})
	}
	require.InDelta(t, 0.3, s.Thresholds().ErrorRate, 1e-9)
	require.Equal(t, 41, s.Stats().AdaptationTriggers)
}

func TestAdaptiveThresholdsFromProfile(t *testing.T) {
	s := newTestSystem()
	s.UpdateProfile(Profile{Precision: LevelLow, Speed: SpeedSlow})
	th := s.Thresholds()
	require.Equal(t, 0.2, th.ErrorRate)
	require.Equal(t, 0.6, th.Completion)
	require.Equal(t, 2000.0, th.ResponseTime)

	s.UpdateProfile(Profile{Precision: LevelHigh, Speed: SpeedFast})
	th = s.Thresholds()
	require.Equal(t, 0.05, th.ErrorRate)
	require.Equal(t, 0.95, th.Completion)
	require.Equal(t, 500.0, th.ResponseTime)
}

func TestSuggestionsAndApply(t *testing.T) {
	s := newTestSystem()
	s.Observe(Outcome{Gesture: "swipeUp", Sample: touch(1500, 60)})
	sugs := s.Suggestions()
	require.Equal(t, []SuggestionAction{ActionAdjustSensitivity, ActionEnableSimpleMode, ActionChangeComplexity}, actions(sugs))

	require.NoError(t, s.Apply(sugs[0]))
	require.InDelta(t, 0.8, s.Preferences().Sensitivity, 1e-9)
	require.ErrorIs(t, s.Apply(sugs[0]), ErrUnknownSuggestion)
	require.Len(t, s.Suggestions(), 2)

	require.NoError(t, s.Apply(sugs[1]))
	require.Equal(t, ComplexitySimple, s.Preferences().Complexity)
	require.Equal(t, 2, s.Stats().CustomizationChanges)
}

func TestOneHandedSuggestion(t *testing.T) {
	s := newTestSystem()
	p := DefaultProfile()
	p.Reachability = ReachLimited
	p.DominantHand = HandLeft
	s.UpdateProfile(p)
	sugs := s.Refresh()
	require.Equal(t, []SuggestionAction{ActionEnableOneHanded}, actions(sugs))

	require.NoError(t, s.Apply(sugs[0]))
	prefs := s.Preferences()
	require.True(t, prefs.OneHanded)
	require.Equal(t, HandLeft, prefs.PreferredHand)
	require.True(t, s.Status().OneHanded)

	s.DisableOneHanded()
	require.False(t, s.Preferences().OneHanded)
}

func TestAdvancedModeSuggestions(t *testing.T) {
	s := newTestSystem()
	prefs := s.Preferences()
	prefs.Complexity = ComplexityAdvanced
	s.SetPreferences(prefs)
	sugs := s.Refresh()
	require.Equal(t, []SuggestionAction{ActionCustomizeGesture, ActionAddAlternative}, actions(sugs))
	require.ErrorIs(t, s.Apply(sugs[0]), ErrUnsupportedAction)
	require.Len(t, s.Suggestions(), 2)
}

func TestLearningDisabled(t *testing.T) {
	s := newTestSystem()
	s.SetLearning(false)
	s.Observe(Outcome{Gesture: "tap", Sample: touch(100, 5), Success: true})
	require.Empty(t, s.LearningRecords())
	require.Equal(t, DefaultProfile(), s.Profile())
	require.Zero(t, s.Stats().Recognized)
}

func TestLearningCaps(t *testing.T) {
	s := newTestSystem()
	for i := 0; i < MaxLearningRecords+5; i++ {
		s.Observe(Outcome{Gesture: "tap", Sample: touch(float64(i), 20), Success: i%2 == 0})
	}
	recs := s.LearningRecords()
	require.Len(t, recs, MaxLearningRecords)
	require.Equal(t, 5.0, recs[0].Duration)
	require.Equal(t, 0.3, recs[0].Confidence)
	require.Equal(t, 0.9, recs[1].Confidence)

	ctx := &Context{GameState: "playing", AttemptCount: 2}
	for i := 0; i < MaxUnrecognized+3; i++ {
		s.RecordUnrecognized(gesture.Sample{Type: gesture.TypeSwipe, Fingers: i}, ctx)
	}
	un := s.Unrecognized()
	require.Len(t, un, MaxUnrecognized)
	require.Equal(t, 3, un[0].Fingers)
	require.Equal(t, "playing", un[0].GameState)
	require.Equal(t, "swipe", un[0].Type)
}

func TestSuggestAlternatives(t *testing.T) {
	s := newTestSystem()
	require.Equal(t, []string{"longPress"}, s.SuggestAlternatives(touch(600, 5)))
	require.Equal(t, []string{"swipe"}, s.SuggestAlternatives(gesture.Sample{Distance: gesture.Float(150)}))
	require.Equal(t, []string{"pinch", "twoFingerTap"}, s.SuggestAlternatives(gesture.Sample{Fingers: 2}))
	require.Empty(t, s.SuggestAlternatives(touch(100, 5)))
}

func TestCustomGestures(t *testing.T) {
	s := newTestSystem()
	hold := gesture.Pattern{Type: gesture.TypeTouch, Duration: &gesture.Range{Low: 2500, High: 5000}}
	require.Error(t, s.AddCustomGesture("", hold, "pause"))
	require.Error(t, s.AddCustomGesture("broken", gesture.Pattern{Type: gesture.TypeTouch}, "pause"))
	require.NoError(t, s.AddCustomGesture("hold", hold, "pause"))

	s.Observe(Outcome{Gesture: "hold", Success: true})
	cg := s.Preferences().CustomGestures["hold"]
	require.Equal(t, 1, cg.UsageCount)
	require.Equal(t, gesture.Kind("hold"), cg.Pattern.Kind)

	require.True(t, s.RemoveCustomGesture("hold"))
	require.False(t, s.RemoveCustomGesture("hold"))
}

func TestConfigureEngine(t *testing.T) {
	s := newTestSystem()
	hold := gesture.Pattern{Type: gesture.TypeTouch, Fingers: 1, Duration: &gesture.Range{Low: 2500, High: 5000}}
	require.NoError(t, s.AddCustomGesture("hold", hold, "pause"))
	s.DisableGesture(string(gesture.SwipeUp))
	s.DisableGesture(string(gesture.SwipeUp))
	s.EnableOneHanded(HandRight)
	prefs := s.Preferences()
	require.Equal(t, []string{"swipeUp"}, prefs.DisabledGestures)
	prefs.Complexity = ComplexitySimple
	s.SetPreferences(prefs)

	e := gesture.New(gesture.DefaultConfig(), nil)
	require.NoError(t, s.Configure(e))

	r, ok := e.Recognize(gesture.Sample{Type: gesture.TypeEdgeSwipe, Edge: gesture.EdgeLeft, Distance: gesture.Float(50)})
	require.True(t, ok)
	require.Equal(t, gesture.EdgeSwipeLeft, r.Kind)

	_, ok = e.Recognize(gesture.Sample{Type: gesture.TypeSwipe, Direction: gesture.Float(90), Distance: gesture.Float(200), Velocity: gesture.Float(1)})
	require.False(t, ok)
	_, ok = e.Recognize(gesture.Sample{Type: gesture.TypeTouch, Duration: gesture.Float(100), Movement: gesture.Float(2), Interval: gesture.Float(200)})
	require.False(t, ok)

	r, ok = e.Recognize(touch(3000, 0))
	require.True(t, ok)
	require.Equal(t, gesture.Kind("hold"), r.Kind)

	s.EnableGesture(string(gesture.SwipeUp))
	require.Empty(t, s.Preferences().DisabledGestures)
}

func TestStats(t *testing.T) {
	s := newTestSystem()
	s.Observe(Outcome{Gesture: "tap", Sample: touch(100, 5), Success: true})
	s.Observe(Outcome{Gesture: "tap", Sample: touch(300, 5), Success: true})
	s.Observe(Outcome{Gesture: "swipeUp", Sample: touch(200, 5)})
	st := s.Stats()
	require.Equal(t, 3, st.Recognized)
	require.Equal(t, map[string]int{"tap": 2, "swipeUp": 1}, st.ByType)
	require.InDelta(t, 200, st.AverageGestureTime, 1e-9)
	require.InDelta(t, 2.0/3, st.SuccessRate, 1e-9)
	require.Greater(t, st.SessionDuration, time.Duration(0))

	s.ResetStats()
	require.Zero(t, s.Stats().Recognized)
}

func TestSyncAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := newTestSystem(WithStore(store), WithRecords(store))
	s.Observe(Outcome{Gesture: "tap", Sample: touch(1500, 60)})
	s.BindAlternative("tap", "space")
	s.RecordUnrecognized(touch(5000, 0), nil)
	s.Sync(ctx)
	s.Sync(ctx)

	recs, err := store.LearningRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	un, err := store.Unrecognized(ctx, 0)
	require.NoError(t, err)
	require.Len(t, un, 1)

	restored := newTestSystem(WithStore(store), WithRecords(store))
	restored.Load(ctx)
	require.Equal(t, s.Preferences(), restored.Preferences())
	require.Equal(t, s.Profile(), restored.Profile())
	require.Equal(t, s.Thresholds(), restored.Thresholds())
	require.Equal(t, s.LearningRecords(), restored.LearningRecords())
	require.Equal(t, []SuggestionAction{ActionAdjustSensitivity, ActionEnableSimpleMode}, actions(restored.Suggestions()))

	restored.Observe(Outcome{Gesture: "tap", Success: true})
	restored.Sync(ctx)
	recs, err = store.LearningRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

type brokenStore struct{}

var errBroken = errors.New("disk on fire")

func (brokenStore) Load(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenStore) Save(context.Context, string, []byte) error   { return errBroken }
func (brokenStore) AddLearningRecords(context.Context, []model.LearningRecord) error {
	return errBroken
}
func (brokenStore) LearningRecords(context.Context, int) ([]model.LearningRecord, error) {
	return nil, errBroken
}
func (brokenStore) AddUnrecognized(context.Context, []model.UnrecognizedGesture) error {
	return errBroken
}
func (brokenStore) Unrecognized(context.Context, int) ([]model.UnrecognizedGesture, error) {
	return nil, errBroken
}

func TestStoreFailuresAreLoggedAndSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := newTestSystem(WithStore(brokenStore{}), WithRecords(brokenStore{}), WithLogger(zap.New(core)))
	s.Observe(Outcome{Gesture: "tap", Sample: touch(100, 5), Success: true})

	s.Sync(context.Background())
	require.Equal(t, 3, logs.Len())
	require.Equal(t, "failed to save adaptation state", logs.All()[0].Message)

	s.Load(context.Background())
	require.Equal(t, 7, logs.Len())
	require.Len(t, s.LearningRecords(), 1)
	require.Equal(t, LevelHigh, s.Profile().Precision)

	good := NewMemoryStore()
	s.records = good
	s.Sync(context.Background())
	recs, err := good.LearningRecords(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestExportImport(t *testing.T) {
	s := newTestSystem()
	hold := gesture.Pattern{Type: gesture.TypeTouch, Duration: &gesture.Range{Low: 2500, High: 5000}}
	require.NoError(t, s.AddCustomGesture("hold", hold, "pause"))
	s.BindAlternative("tap", "space")
	s.Observe(Outcome{Gesture: "tap", Sample: touch(1500, 60)})

	data, err := s.Export()
	require.NoError(t, err)

	dst := newTestSystem()
	dst.BindAlternative("swipeUp", "pageUp")
	require.NoError(t, dst.Import(data))
	require.Equal(t, s.Preferences(), dst.Preferences())
	require.Equal(t, s.Status(), dst.Status())
	require.Equal(t, 1, dst.Stats().Failed)

	require.ErrorIs(t, dst.Import([]byte("nope")), ErrInvalidExport)
	require.ErrorIs(t, dst.Import([]byte(`{"userPreferences": {"touchSensitivity": "high"}}`)), ErrInvalidExport)
}
