// Package model defines shared data structures.
package model

import (
	"sort"
	"time"
)

// Play is one completed attempt at a stage.
type Play struct {
	Stage          string    `json:"stage,omitempty"`
	Score          float64   `json:"score"`
	CompletionTime float64   `json:"completionTime"`
	Accuracy       float64   `json:"accuracy"`
	Timestamp      time.Time `json:"timestamp"`
}

// PlayFilter selects play history.
type PlayFilter struct {
	Stages []string
	Since  *time.Time
	// Last keeps only the most recent N plays per stage when > 0.
	Last int
}

// AnalyzeConfig defines filters and options for stage reports.
type AnalyzeConfig struct {
	PlayFilter
	CurveWindow int
}

// GroupByStage groups plays by stage, ordering each group by timestamp.
func GroupByStage(plays []Play) map[string][]Play {
	out := map[string][]Play{}
	for _, p := range plays {
		out[p.Stage] = append(out[p.Stage], p)
	}
	for stage := range out {
		group := out[stage]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})
	}
	return out
}

// FilterPlays applies filter to plays in memory with the same semantics
// as the store: stage and since select, then Last keeps the newest plays
// per stage. The result is grouped by stage, oldest first.
func FilterPlays(plays []Play, filter PlayFilter) []Play {
	var wanted map[string]bool
	if len(filter.Stages) > 0 {
		wanted = make(map[string]bool, len(filter.Stages))
		for _, s := range filter.Stages {
			wanted[s] = true
		}
	}
	var kept []Play
	for _, p := range plays {
		if wanted != nil && !wanted[p.Stage] {
			continue
		}
		if filter.Since != nil && p.Timestamp.Before(*filter.Since) {
			continue
		}
		kept = append(kept, p)
	}
	grouped := GroupByStage(kept)
	out := make([]Play, 0, len(kept))
	for _, id := range StageIDs(grouped) {
		group := grouped[id]
		if filter.Last > 0 && len(group) > filter.Last {
			group = group[len(group)-filter.Last:]
		}
		out = append(out, group...)
	}
	return out
}

// StageIDs returns the keys of stage data in sorted order.
func StageIDs(data map[string][]Play) []string {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LearningRecord is one observed gesture outcome kept for adaptation.
type LearningRecord struct {
	Gesture    string    `json:"gesture"`
	Success    bool      `json:"success"`
	Confidence float64   `json:"confidence"`
	Duration   float64   `json:"duration"`
	Distance   float64   `json:"distance"`
	Timestamp  time.Time `json:"timestamp"`
}

// UnrecognizedGesture is a sample no pattern matched, with where it
// happened when known.
type UnrecognizedGesture struct {
	Type            string    `json:"type"`
	Fingers         int       `json:"fingers"`
	Duration        float64   `json:"duration"`
	Distance        float64   `json:"distance"`
	GameState       string    `json:"gameState,omitempty"`
	UIElement       string    `json:"uiElement,omitempty"`
	AttemptCount    int       `json:"attemptCount,omitempty"`
	PreviousGesture string    `json:"previousGesture,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ChallengeType is the cadence of a challenge.
type ChallengeType string

// Challenge types.
const (
	ChallengeDaily   ChallengeType = "daily"
	ChallengeWeekly  ChallengeType = "weekly"
	ChallengeSpecial ChallengeType = "special"
	ChallengeEvent   ChallengeType = "event"
)

// ChallengeTypes lists the valid challenge types.
var ChallengeTypes = []ChallengeType{ChallengeDaily, ChallengeWeekly, ChallengeSpecial, ChallengeEvent}

// Difficulty is the difficulty tier of a challenge.
type Difficulty string

// Challenge difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the valid difficulties in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Rank orders difficulties from 1 (easy) to 3 (hard); unknown values rank 0.
func (d Difficulty) Rank() int {
	for i, v := range Difficulties {
		if v == d {
			return i + 1
		}
	}
	return 0
}

// RewardItem is an item granted by a reward.
type RewardItem struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

// Reward is granted on challenge completion.
type Reward struct {
	AP     int          `json:"ap,omitempty"`
	Title  string       `json:"title,omitempty"`
	Items  []RewardItem `json:"items,omitempty"`
	Badges []string     `json:"badges,omitempty"`
}

// ChallengeMetadata carries bookkeeping fields for a challenge.
type ChallengeMetadata struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Source   string   `json:"source"`
	Version  string   `json:"version"`
}

// Challenge is a time-boxed goal shown to the player.
type Challenge struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Type        ChallengeType     `json:"type"`
	Difficulty  Difficulty        `json:"difficulty"`
	Progress    int               `json:"progress"`
	Target      int               `json:"target"`
	Priority    int               `json:"priority"`
	Deadline    time.Time         `json:"deadline"`
	Completed   bool              `json:"completed"`
	Reward      *Reward           `json:"reward,omitempty"`
	Metadata    ChallengeMetadata `json:"metadata"`
}
