package challenge

import (
	"time"

	"github.com/verte-zerg/popkit/internal/model"
)

// DemoChallenges returns the sample set shown when no source is configured.
func DemoChallenges(now time.Time) []model.Challenge {
	day := 24 * time.Hour
	demos := []model.Challenge{
		{
			ID:          "daily-1",
			Title:       "Pop 10 bubbles",
			Description: "Pop 10 bubbles before the day is over",
			Type:        model.ChallengeDaily,
			Difficulty:  model.DifficultyEasy,
			Progress:    7,
			Target:      10,
			Reward:      &model.Reward{AP: 50},
			Deadline:    now.Add(day),
			Priority:    1,
		},
		{
			ID:          "weekly-1",
			Title:       "Earn 500 points",
			Description: "Earn 500 points this week",
			Type:        model.ChallengeWeekly,
			Difficulty:  model.DifficultyMedium,
			Progress:    250,
			Target:      500,
			Reward:      &model.Reward{AP: 200},
			Deadline:    now.Add(7 * day),
			Priority:    2,
		},
		{
			ID:          "special-1",
			Title:       "Chain a 10 combo",
			Description: "Reach a 10 combo in a single game",
			Type:        model.ChallengeSpecial,
			Difficulty:  model.DifficultyHard,
			Progress:    0,
			Target:      1,
			Reward:      &model.Reward{AP: 300, Title: "Combo Master"},
			Deadline:    now.Add(30 * day),
			Priority:    3,
		},
	}
	for i := range demos {
		demos[i].Metadata = model.ChallengeMetadata{
			Category: "demo",
			Tags:     []string{string(demos[i].Type), string(demos[i].Difficulty)},
			Source:   "demo_generator",
			Version:  exportVersion,
		}
		demos[i].Completed = isDone(demos[i])
	}
	return demos
}
