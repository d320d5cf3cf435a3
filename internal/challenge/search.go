package challenge

import (
	"sort"
	"strings"

	"github.com/verte-zerg/popkit/internal/model"
)

// SearchField names a challenge field that AdvancedSearch can match.
type SearchField string

// Search fields.
const (
	FieldTitle       SearchField = "title"
	FieldDescription SearchField = "description"
	FieldType        SearchField = "type"
	FieldDifficulty  SearchField = "difficulty"
	FieldTags        SearchField = "tags"
)

// AllSearchFields lists every searchable field.
var AllSearchFields = []SearchField{FieldTitle, FieldDescription, FieldType, FieldDifficulty, FieldTags}

var fieldWeights = map[SearchField]int{
	FieldTitle:       3,
	FieldDescription: 2,
	FieldType:        1,
	FieldDifficulty:  1,
	FieldTags:        1,
}

// SearchOptions configures AdvancedSearch. No fields means all fields.
type SearchOptions struct {
	Query         string
	Fields        []SearchField
	CaseSensitive bool
	ExactMatch    bool
}

// SearchResult is one matching challenge with its relevance.
type SearchResult struct {
	Challenge      model.Challenge
	MatchedFields  []SearchField
	RelevanceScore int
}

// AdvancedSearch scores every challenge by the weighted fields that match
// and returns the matches, most relevant first.
func (c *Controller) AdvancedSearch(opts SearchOptions) []SearchResult {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = AllSearchFields
	}
	term := opts.Query
	if !opts.CaseSensitive {
		term = strings.ToLower(term)
	}
	var results []SearchResult
	for _, ch := range c.All() {
		res := SearchResult{Challenge: ch}
		for _, f := range fields {
			value := fieldValue(ch, f)
			if !opts.CaseSensitive {
				value = strings.ToLower(value)
			}
			matched := strings.Contains(value, term)
			if opts.ExactMatch {
				matched = value == term
			}
			if matched {
				res.MatchedFields = append(res.MatchedFields, f)
				res.RelevanceScore += fieldWeights[f]
			}
		}
		if res.RelevanceScore > 0 {
			results = append(results, res)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results
}

func fieldValue(ch model.Challenge, f SearchField) string {
	switch f {
	case FieldTitle:
		return ch.Title
	case FieldDescription:
		return ch.Description
	case FieldType:
		return string(ch.Type)
	case FieldDifficulty:
		return string(ch.Difficulty)
	case FieldTags:
		return strings.Join(ch.Metadata.Tags, ", ")
	default:
		return ""
	}
}
