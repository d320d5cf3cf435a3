package adaptation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrInvalidExport is returned by Import for documents it cannot read.
var ErrInvalidExport = errors.New("invalid adaptation export")

type exportSystem struct {
	Learning    bool         `json:"learningEnabled"`
	Profile     Profile      `json:"userProfile"`
	Thresholds  Thresholds   `json:"adaptiveThresholds"`
	Suggestions []Suggestion `json:"suggestions"`
}

type exportDoc struct {
	System      exportSystem `json:"adaptationSystem"`
	Preferences Preferences  `json:"userPreferences"`
	Stats       Stats        `json:"stats"`
}

// Export writes the adaptation state, preferences and statistics as
// indented JSON.
func (s *System) Export() ([]byte, error) {
	s.mu.Lock()
	doc := s.docLocked()
	s.mu.Unlock()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode adaptation export: %w", err)
	}
	return append(data, '\n'), nil
}

func (s *System) docLocked() exportDoc {
	st := s.stats
	st.ByType = make(map[string]int, len(s.stats.ByType))
	for k, v := range s.stats.ByType {
		st.ByType[k] = v
	}
	return exportDoc{
		System: exportSystem{
			Learning:    s.learning,
			Profile:     s.profile,
			Thresholds:  s.thresholds,
			Suggestions: append([]Suggestion{}, s.suggestions...),
		},
		Preferences: s.prefs.clone(),
		Stats:       st,
	}
}

// Import applies a document written by Export. Sections and fields that
// are absent keep their current values; collections that are present
// replace the current ones.
func (s *System) Import(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidExport)
	}
	s.mu.Lock()
	doc := s.docLocked()
	s.mu.Unlock()

	for path, reset := range map[string]func(){
		"userPreferences.customGestures":      func() { doc.Preferences.CustomGestures = nil },
		"userPreferences.alternativeBindings": func() { doc.Preferences.AlternativeBindings = nil },
		"stats.gesturesByType":                func() { doc.Stats.ByType = nil },
	} {
		if gjson.GetBytes(data, path).Exists() {
			reset()
		}
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	if doc.Stats.ByType == nil {
		doc.Stats.ByType = map[string]int{}
	}
	doc.Stats.SessionDuration = 0
	doc.Stats.SuccessRate = 0

	s.mu.Lock()
	defer s.mu.Unlock()
	s.learning = doc.System.Learning
	s.profile = doc.System.Profile
	s.thresholds = doc.System.Thresholds
	s.suggestions = doc.System.Suggestions
	if s.suggestions == nil {
		s.suggestions = []Suggestion{}
	}
	s.prefs = normalizePreferences(doc.Preferences)
	s.stats = doc.Stats
	s.logger.Info("adaptation state imported", zap.Int("customGestures", len(s.prefs.CustomGestures)))
	return nil
}
