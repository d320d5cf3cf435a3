package challenge

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/popkit/internal/model"
)

const (
	defaultPriority = MaxPriority
	defaultLifetime = 24 * time.Hour
)

// NewID returns a fresh challenge id.
func NewID() string {
	return "challenge_" + uuid.NewString()
}

// Normalize fills defaults and clamps numeric fields so that a partially
// specified challenge becomes well formed. A nil idgen uses NewID.
// Normalizing an already normalized challenge returns it unchanged.
func Normalize(c model.Challenge, now time.Time, idgen func() string) model.Challenge {
	if idgen == nil {
		idgen = NewID
	}
	out := c
	if strings.TrimSpace(out.ID) == "" {
		out.ID = idgen()
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)
	if !validType(out.Type) {
		out.Type = model.ChallengeDaily
	}
	if !validDifficulty(out.Difficulty) {
		out.Difficulty = model.DifficultyEasy
	}
	out.Progress = max(MinProgress, out.Progress)
	out.Target = max(MinTarget, out.Target)
	if out.Priority == 0 {
		out.Priority = defaultPriority
	}
	out.Priority = ClampPriority(out.Priority)
	if out.Deadline.IsZero() {
		out.Deadline = now.Add(defaultLifetime)
	}
	if out.Reward == nil {
		out.Reward = &model.Reward{}
	}
	if isZeroMetadata(out.Metadata) {
		out.Metadata = model.ChallengeMetadata{
			Category: "default",
			Tags:     []string{},
			Source:   "normalized",
			Version:  exportVersion,
		}
	}
	out.Completed = out.Progress >= out.Target
	return out
}

func isZeroMetadata(m model.ChallengeMetadata) bool {
	return m.Category == "" && m.Source == "" && m.Version == "" && len(m.Tags) == 0
}

// ClampProgress bounds progress to [0, target].
func ClampProgress(progress, target int) int {
	return min(max(0, progress), target)
}

// ClampPriority bounds priority to the valid range.
func ClampPriority(priority int) int {
	return min(MaxPriority, max(MinPriority, priority))
}
