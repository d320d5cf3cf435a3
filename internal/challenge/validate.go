// Package challenge validates, normalizes, imports and manages challenge sets.
package challenge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/verte-zerg/popkit/internal/model"
)

// Validation limits.
const (
	MinProgress          = 0
	MinTarget            = 1
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MinPriority          = 1
	MaxPriority          = 999
)

// Validate returns every problem found in c. An empty result means c is valid.
func Validate(c model.Challenge) []string {
	var errs []string
	if c.ID == "" {
		errs = append(errs, "ID is required")
	}
	if c.Title == "" {
		errs = append(errs, "Title is required")
	}
	if c.Description == "" {
		errs = append(errs, "Description is required")
	}
	if c.Type == "" {
		errs = append(errs, "Type is required")
	}
	if c.Difficulty == "" {
		errs = append(errs, "Difficulty is required")
	}

	if utf8.RuneCountInString(c.Title) > MaxTitleLength {
		errs = append(errs, fmt.Sprintf("Title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(c.Description) > MaxDescriptionLength {
		errs = append(errs, fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength))
	}

	if c.Progress < MinProgress {
		errs = append(errs, fmt.Sprintf("Progress must be a non-negative number (>= %d)", MinProgress))
	}
	if c.Target < MinTarget {
		errs = append(errs, fmt.Sprintf("Target must be a positive number (>= %d)", MinTarget))
	}
	if c.Progress > c.Target {
		errs = append(errs, "Progress cannot exceed target")
	}
	if c.Priority < MinPriority || c.Priority > MaxPriority {
		errs = append(errs, fmt.Sprintf("Priority must be between %d and %d", MinPriority, MaxPriority))
	}
	if c.Deadline.IsZero() {
		errs = append(errs, "Deadline must be a valid date")
	}

	if !validType(c.Type) {
		errs = append(errs, "Type must be one of: "+joinTypes(model.ChallengeTypes))
	}
	if !validDifficulty(c.Difficulty) {
		errs = append(errs, "Difficulty must be one of: "+joinDifficulties(model.Difficulties))
	}
	return errs
}

func validType(t model.ChallengeType) bool {
	for _, v := range model.ChallengeTypes {
		if v == t {
			return true
		}
	}
	return false
}

func validDifficulty(d model.Difficulty) bool {
	return d.Rank() > 0
}

func joinTypes(types []model.ChallengeType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func joinDifficulties(diffs []model.Difficulty) string {
	parts := make([]string, len(diffs))
	for i, d := range diffs {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}
