// Package adaptation learns a player's touch habits from gesture outcomes
// and turns them into threshold changes and input suggestions.
package adaptation

import (
	"time"

	"github.com/verte-zerg/popkit/internal/gesture"
)

// Hand is the hand a player uses most.
type Hand string

// Hands.
const (
	HandLeft  Hand = "left"
	HandRight Hand = "right"
	HandBoth  Hand = "both"
)

// Reachability is how far across the screen a player can reach.
type Reachability string

// Reachability levels.
const (
	ReachLimited  Reachability = "limited"
	ReachNormal   Reachability = "normal"
	ReachExtended Reachability = "extended"
)

// Level is a three step rating used for precision and endurance.
type Level string

// Levels.
const (
	LevelLow    Level = "low"
	LevelNormal Level = "normal"
	LevelHigh   Level = "high"
)

// Speed is how quickly a player completes gestures.
type Speed string

// Speeds.
const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// Complexity is the gesture set a player has opted into.
type Complexity string

// Complexities.
const (
	ComplexitySimple   Complexity = "simple"
	ComplexityNormal   Complexity = "normal"
	ComplexityAdvanced Complexity = "advanced"
)

// Profile is the categorical picture of a player built from observations.
type Profile struct {
	DominantHand Hand         `json:"dominantHand"`
	Reachability Reachability `json:"reachability"`
	Precision    Level        `json:"precision"`
	Speed        Speed        `json:"speed"`
	Endurance    Level        `json:"endurance"`
}

// DefaultProfile is the profile of a player nothing is known about.
func DefaultProfile() Profile {
	return Profile{
		DominantHand: HandRight,
		Reachability: ReachNormal,
		Precision:    LevelNormal,
		Speed:        SpeedNormal,
		Endurance:    LevelNormal,
	}
}

// Thresholds are the adaptive targets. ResponseTime is in milliseconds.
type Thresholds struct {
	ErrorRate    float64 `json:"errorRate"`
	SuccessRate  float64 `json:"successRate"`
	ResponseTime float64 `json:"responseTime"`
	Completion   float64 `json:"gestureCompletion"`
}

// DefaultThresholds returns the starting thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{ErrorRate: 0.1, SuccessRate: 0.9, ResponseTime: 1000, Completion: 0.8}
}

// SuggestionType groups suggestions by what they improve.
type SuggestionType string

// Suggestion types.
const (
	SuggestPrecision     SuggestionType = "precision"
	SuggestSpeed         SuggestionType = "speed"
	SuggestAccessibility SuggestionType = "accessibility"
	SuggestEfficiency    SuggestionType = "efficiency"
	SuggestComfort       SuggestionType = "comfort"
)

// SuggestionAction is what applying a suggestion changes.
type SuggestionAction string

// Suggestion actions.
const (
	ActionAdjustSensitivity SuggestionAction = "adjustSensitivity"
	ActionEnableSimpleMode  SuggestionAction = "enableSimpleMode"
	ActionEnableOneHanded   SuggestionAction = "enableOneHanded"
	ActionCustomizeGesture  SuggestionAction = "customizeGesture"
	ActionChangeComplexity  SuggestionAction = "changeComplexity"
	ActionAddAlternative    SuggestionAction = "addAlternative"
)

// Priority ranks suggestions.
type Priority string

// Priorities.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Suggestion is one proposed change to the player's settings.
type Suggestion struct {
	Type     SuggestionType   `json:"type"`
	Message  string           `json:"message"`
	Action   SuggestionAction `json:"action"`
	Priority Priority         `json:"priority,omitempty"`
}

// CustomGesture is a player-defined gesture bound to an action.
type CustomGesture struct {
	Name       string          `json:"name"`
	Pattern    gesture.Pattern `json:"pattern"`
	Action     string          `json:"action"`
	CreatedAt  time.Time       `json:"createdAt"`
	UsageCount int             `json:"usageCount"`
}

// Preferences are the settings a player controls. Sensitivity is a
// multiplier and Timeout is in milliseconds.
type Preferences struct {
	OneHanded           bool                     `json:"oneHandedMode"`
	PreferredHand       Hand                     `json:"preferredHand"`
	Complexity          Complexity               `json:"gestureComplexity"`
	Sensitivity         float64                  `json:"touchSensitivity"`
	Timeout             float64                  `json:"gestureTimeout"`
	VisualFeedback      bool                     `json:"visualFeedback"`
	AudioFeedback       bool                     `json:"audioFeedback"`
	HapticFeedback      bool                     `json:"hapticFeedback"`
	CustomGestures      map[string]CustomGesture `json:"customGestures"`
	DisabledGestures    []string                 `json:"disabledGestures"`
	AlternativeBindings map[string]string        `json:"alternativeBindings"`
}

// Preference defaults.
const (
	DefaultSensitivity = 1.0
	DefaultTimeout     = 1000
)

// DefaultPreferences returns the preferences of a new player.
func DefaultPreferences() Preferences {
	return Preferences{
		PreferredHand:       HandRight,
		Complexity:          ComplexityNormal,
		Sensitivity:         DefaultSensitivity,
		Timeout:             DefaultTimeout,
		VisualFeedback:      true,
		AudioFeedback:       true,
		HapticFeedback:      true,
		CustomGestures:      map[string]CustomGesture{},
		DisabledGestures:    []string{},
		AlternativeBindings: map[string]string{},
	}
}

func (p Preferences) clone() Preferences {
	c := p
	c.CustomGestures = make(map[string]CustomGesture, len(p.CustomGestures))
	for k, v := range p.CustomGestures {
		v.Pattern = v.Pattern.Clone()
		c.CustomGestures[k] = v
	}
	c.DisabledGestures = append([]string{}, p.DisabledGestures...)
	c.AlternativeBindings = make(map[string]string, len(p.AlternativeBindings))
	for k, v := range p.AlternativeBindings {
		c.AlternativeBindings[k] = v
	}
	return c
}

// Context is where an unrecognized gesture happened.
type Context struct {
	GameState       string `json:"gameState,omitempty"`
	UIElement       string `json:"uiElement,omitempty"`
	AttemptCount    int    `json:"attemptCount,omitempty"`
	PreviousGesture string `json:"previousGesture,omitempty"`
}

// Outcome is one gesture attempt and whether it did what the player meant.
// ViewportWidth is needed to infer the dominant hand from Sample.StartX.
type Outcome struct {
	Gesture       string         `json:"gesture"`
	Sample        gesture.Sample `json:"sample"`
	Success       bool           `json:"success"`
	ViewportWidth float64        `json:"viewportWidth,omitempty"`
}

// Stats counts what the system has observed this session.
type Stats struct {
	Recognized           int            `json:"gesturesRecognized"`
	ByType               map[string]int `json:"gesturesByType"`
	Successful           int            `json:"successfulGestures"`
	Failed               int            `json:"failedGestures"`
	AverageGestureTime   float64        `json:"averageGestureTime"`
	CustomizationChanges int            `json:"customizationChanges"`
	AdaptationTriggers   int            `json:"adaptationTriggers"`
	SessionStart         time.Time      `json:"sessionStart"`
	SessionDuration      time.Duration  `json:"sessionDuration,omitempty"`
	SuccessRate          float64        `json:"successRate,omitempty"`
}

// Status is a snapshot of the adaptation state.
type Status struct {
	Learning    bool         `json:"learningEnabled"`
	Profile     Profile      `json:"userProfile"`
	Thresholds  Thresholds   `json:"adaptiveThresholds"`
	Suggestions []Suggestion `json:"suggestions"`
	OneHanded   bool         `json:"oneHandedMode"`
	Complexity  Complexity   `json:"gestureComplexity"`
}
