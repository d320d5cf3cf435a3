package adaptation

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/verte-zerg/popkit/internal/model"
)

// Keys the System stores its blobs under.
const (
	KeyPreferences = "gestureCustomizer_preferences"
	KeyProfile     = "gestureAdaptation_profile"
)

// PreferenceStore keeps JSON blobs under fixed keys. Load returns nil data
// and no error for a key that was never saved.
type PreferenceStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// RecordStore keeps learning data and unrecognized gestures. Implementations
// trim to MaxLearningRecords and MaxUnrecognized, dropping the oldest.
type RecordStore interface {
	AddLearningRecords(ctx context.Context, recs []model.LearningRecord) error
	LearningRecords(ctx context.Context, limit int) ([]model.LearningRecord, error)
	AddUnrecognized(ctx context.Context, recs []model.UnrecognizedGesture) error
	Unrecognized(ctx context.Context, limit int) ([]model.UnrecognizedGesture, error)
}

type profileBlob struct {
	Learning   bool       `json:"learningEnabled"`
	Profile    Profile    `json:"userProfile"`
	Thresholds Thresholds `json:"adaptiveThresholds"`
}

// Load restores state from the configured stores. Failures are logged and
// leave the in-memory state as it was.
func (s *System) Load(ctx context.Context) {
	if s.store != nil {
		if data := s.loadBlob(ctx, KeyPreferences); data != nil {
			prefs := DefaultPreferences()
			if err := json.Unmarshal(data, &prefs); err != nil {
				s.logger.Warn("failed to decode gesture preferences", zap.Error(err))
			} else {
				s.mu.Lock()
				s.prefs = normalizePreferences(prefs)
				s.mu.Unlock()
			}
		}
		if data := s.loadBlob(ctx, KeyProfile); data != nil {
			s.mu.Lock()
			blob := profileBlob{Learning: s.learning, Profile: s.profile, Thresholds: s.thresholds}
			s.mu.Unlock()
			if err := json.Unmarshal(data, &blob); err != nil {
				s.logger.Warn("failed to decode adaptation profile", zap.Error(err))
			} else {
				s.mu.Lock()
				s.learning, s.profile, s.thresholds = blob.Learning, blob.Profile, blob.Thresholds
				s.suggestions = s.suggestLocked()
				s.mu.Unlock()
			}
		}
	}
	if s.records == nil {
		return
	}
	learning, err := s.records.LearningRecords(ctx, MaxLearningRecords)
	if err != nil {
		s.logger.Warn("failed to load learning records", zap.Error(err))
	}
	unrecognized, uerr := s.records.Unrecognized(ctx, MaxUnrecognized)
	if uerr != nil {
		s.logger.Warn("failed to load unrecognized gestures", zap.Error(uerr))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.learningData = learning
		s.pendingLearning = 0
	}
	if uerr == nil {
		s.unrecognized = unrecognized
		s.pendingUnrecognized = 0
	}
}

func (s *System) loadBlob(ctx context.Context, key string) []byte {
	data, err := s.store.Load(ctx, key)
	if err != nil {
		s.logger.Warn("failed to load adaptation state", zap.String("key", key), zap.Error(err))
		return nil
	}
	return data
}

// Sync writes the current state to the configured stores. Records already
// written are not written again. Failures are logged and swallowed; the
// in-memory state stays authoritative and a later Sync retries.
func (s *System) Sync(ctx context.Context) {
	s.mu.Lock()
	prefs := s.prefs.clone()
	blob := profileBlob{Learning: s.learning, Profile: s.profile, Thresholds: s.thresholds}
	learning := append([]model.LearningRecord(nil), s.learningData[len(s.learningData)-s.pendingLearning:]...)
	unrecognized := append([]model.UnrecognizedGesture(nil), s.unrecognized[len(s.unrecognized)-s.pendingUnrecognized:]...)
	s.mu.Unlock()

	if s.store != nil {
		s.saveBlob(ctx, KeyPreferences, prefs)
		s.saveBlob(ctx, KeyProfile, blob)
	}
	if s.records == nil {
		return
	}
	if len(learning) > 0 {
		if err := s.records.AddLearningRecords(ctx, learning); err != nil {
			s.logger.Warn("failed to store learning records", zap.Error(err))
		} else {
			s.mu.Lock()
			s.pendingLearning = max(0, s.pendingLearning-len(learning))
			s.mu.Unlock()
		}
	}
	if len(unrecognized) > 0 {
		if err := s.records.AddUnrecognized(ctx, unrecognized); err != nil {
			s.logger.Warn("failed to store unrecognized gestures", zap.Error(err))
		} else {
			s.mu.Lock()
			s.pendingUnrecognized = max(0, s.pendingUnrecognized-len(unrecognized))
			s.mu.Unlock()
		}
	}
}

func (s *System) saveBlob(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode adaptation state", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.store.Save(ctx, key, data); err != nil {
		s.logger.Warn("failed to save adaptation state", zap.String("key", key), zap.Error(err))
	}
}

// MemoryStore is an in-memory PreferenceStore and RecordStore.
type MemoryStore struct {
	mu           sync.Mutex
	blobs        map[string][]byte
	learning     []model.LearningRecord
	unrecognized []model.UnrecognizedGesture
}

var (
	_ PreferenceStore = (*MemoryStore)(nil)
	_ RecordStore     = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// Load returns a copy of the blob saved under key.
func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of data under key.
func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

// AddLearningRecords appends recs, keeping the newest MaxLearningRecords.
func (m *MemoryStore) AddLearningRecords(_ context.Context, recs []model.LearningRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.learning = appendCapped(m.learning, r, MaxLearningRecords)
	}
	return nil
}

// LearningRecords returns up to limit of the newest records, oldest first.
func (m *MemoryStore) LearningRecords(_ context.Context, limit int) ([]model.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newest(m.learning, limit), nil
}

// AddUnrecognized appends recs, keeping the newest MaxUnrecognized.
func (m *MemoryStore) AddUnrecognized(_ context.Context, recs []model.UnrecognizedGesture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.unrecognized = appendCapped(m.unrecognized, r, MaxUnrecognized)
	}
	return nil
}

// Unrecognized returns up to limit of the newest gestures, oldest first.
func (m *MemoryStore) Unrecognized(_ context.Context, limit int) ([]model.UnrecognizedGesture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newest(m.unrecognized, limit), nil
}

func newest[T any](list []T, limit int) []T {
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]T(nil), list...)
}
