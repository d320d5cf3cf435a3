package challenge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/sjson"

	"github.com/verte-zerg/popkit/internal/model"
)

const exportVersion = "1.0"

// Statistics summarizes a challenge set. Rates are whole percentages.
type Statistics struct {
	Total           int                         `json:"total"`
	Completed       int                         `json:"completed"`
	Active          int                         `json:"active"`
	CompletionRate  int                         `json:"completionRate"`
	AverageProgress int                         `json:"averageProgress"`
	ByType          map[model.ChallengeType]int `json:"byType"`
	ByDifficulty    map[model.Difficulty]int    `json:"byDifficulty"`
}

// Summarize computes statistics over challenges.
func Summarize(challenges []model.Challenge) Statistics {
	s := Statistics{
		Total:        len(challenges),
		ByType:       map[model.ChallengeType]int{},
		ByDifficulty: map[model.Difficulty]int{},
	}
	var progress float64
	for _, c := range challenges {
		if isDone(c) {
			s.Completed++
		} else {
			s.Active++
		}
		s.ByType[c.Type]++
		s.ByDifficulty[c.Difficulty]++
		progress += ratio(c)
	}
	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
		s.AverageProgress = int(math.Round(progress / float64(s.Total) * 100))
	}
	return s
}

type exportDocument struct {
	Challenges []model.Challenge `json:"challenges"`
	Statistics Statistics        `json:"statistics"`
	Version    string            `json:"version"`
}

// Export encodes challenges with their statistics, stamped with now.
func Export(challenges []model.Challenge, now time.Time) ([]byte, error) {
	if challenges == nil {
		challenges = []model.Challenge{}
	}
	raw, err := json.Marshal(exportDocument{
		Challenges: challenges,
		Statistics: Summarize(challenges),
		Version:    exportVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode challenges: %w", err)
	}
	raw, err = sjson.SetBytes(raw, "exportDate", now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to stamp export date: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to format export: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func isDone(c model.Challenge) bool {
	return c.Progress >= c.Target
}

func ratio(c model.Challenge) float64 {
	if c.Target <= 0 {
		return 0
	}
	return float64(c.Progress) / float64(c.Target)
}
