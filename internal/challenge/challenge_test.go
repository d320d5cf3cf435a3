package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/verte-zerg/popkit/internal/model"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedID(id string) func() string {
	return func() string { return id }
}

func validChallenge(id string) model.Challenge {
	return model.Challenge{
		ID:          id,
		Title:       "Pop bubbles",
		Description: "Pop some bubbles",
		Type:        model.ChallengeDaily,
		Difficulty:  model.DifficultyEasy,
		Progress:    1,
		Target:      10,
		Priority:    5,
		Deadline:    testNow.Add(time.Hour),
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := model.Challenge{
		Title:    strings.Repeat("x", 101),
		Progress: 5,
		Target:   0,
		Priority: 1000,
		Type:     "monthly",
	}
	errs := Validate(c)
	for _, want := range []string{
		"ID is required",
		"Description is required",
		"Difficulty is required",
		"Title must be 100 characters or less",
		"Target must be a positive number (>= 1)",
		"Progress cannot exceed target",
		"Priority must be between 1 and 999",
		"Deadline must be a valid date",
		"Type must be one of: daily, weekly, special, event",
		"Difficulty must be one of: easy, medium, hard",
	} {
		require.Contains(t, errs, want)
	}
	require.Empty(t, Validate(validChallenge("a")))
}

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Normalize(model.Challenge{Title: "  Pop  ", Progress: -3, Priority: -7}, testNow, fixedID("gen"))
	require.Equal(t, "gen", got.ID)
	require.Equal(t, "Pop", got.Title)
	require.Equal(t, model.ChallengeDaily, got.Type)
	require.Equal(t, model.DifficultyEasy, got.Difficulty)
	require.Equal(t, 0, got.Progress)
	require.Equal(t, 1, got.Target)
	require.Equal(t, 1, got.Priority)
	require.Equal(t, testNow.Add(24*time.Hour), got.Deadline)
	require.Equal(t, "normalized", got.Metadata.Source)

	require.Equal(t, 999, Normalize(model.Challenge{}, testNow, fixedID("x")).Priority)
	require.True(t, strings.HasPrefix(NewID(), "challenge_"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []model.Challenge{
		{},
		{Title: " t ", Type: "bogus", Difficulty: "insane", Progress: 50, Target: 3, Priority: 5000},
		validChallenge("keep"),
		{ID: "x", Metadata: model.ChallengeMetadata{Tags: []string{"a"}}},
	}
	for _, in := range inputs {
		once := Normalize(in, testNow, fixedID("id"))
		twice := Normalize(once, testNow.Add(time.Hour), fixedID("other"))
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("normalize not idempotent (-once +twice):\n%s", diff)
		}
	}
}

func TestImportSkipsInvalidEntries(t *testing.T) {
	doc := `{"challenges":[
		{"id":"a","title":"Pop","description":"Pop bubbles","type":"daily","difficulty":"easy","progress":1,"target":5,"priority":2},
		{"id":"b","description":"No title here","type":"weekly","difficulty":"hard","target":5}
	]}`
	res := ImportWith([]byte(doc), ImportOptions{Now: func() time.Time { return testNow }})
	require.True(t, res.Success)
	require.Equal(t, 1, res.Imported)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 1, res.Errors[0].Index)
	require.Contains(t, res.Errors[0].Errors, "Title is required")
	require.Equal(t, "a", res.Challenges[0].ID)
}

func TestImportCoercesLooseValues(t *testing.T) {
	doc := `{"challenges":[{"id":42,"title":"T","description":"D","progress":"3","target":"4","deadline":"2024-06-01T00:00:00Z","reward":{"ap":10},"metadata":{"category":"c","tags":["x"],"source":"s","version":"1.0"}}]}`
	res := Import([]byte(doc))
	require.True(t, res.Success)
	require.Equal(t, 1, res.Imported)
	c := res.Challenges[0]
	require.Equal(t, "42", c.ID)
	require.Equal(t, 3, c.Progress)
	require.Equal(t, 4, c.Target)
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), c.Deadline.UTC())
	require.Equal(t, 10, c.Reward.AP)
	require.Equal(t, []string{"x"}, c.Metadata.Tags)
}

func TestImportStructuralErrors(t *testing.T) {
	cases := map[string]string{
		`{"challenges":5}`:   "Invalid challenge data format",
		`{"other":[]}`:       "Invalid challenge data format",
		`{"challenges":[1]}`: "Invalid challenge data format",
		`nope`:               "invalid JSON",
	}
	for input, want := range cases {
		res := Import([]byte(input))
		require.False(t, res.Success, input)
		require.Zero(t, res.Imported, input)
		require.Equal(t, want, res.Error, input)
	}
}

func TestExportStampsDateAndStatistics(t *testing.T) {
	a := validChallenge("a")
	b := validChallenge("b")
	b.Progress = b.Target
	out, err := Export([]model.Challenge{a, b}, testNow)
	require.NoError(t, err)
	doc := gjson.ParseBytes(out)
	require.Equal(t, "2024-05-01T12:00:00Z", doc.Get("exportDate").String())
	require.Equal(t, "1.0", doc.Get("version").String())
	require.EqualValues(t, 2, doc.Get("statistics.total").Int())
	require.EqualValues(t, 50, doc.Get("statistics.completionRate").Int())
	require.EqualValues(t, 55, doc.Get("statistics.averageProgress").Int())

	back := Import(out)
	require.True(t, back.Success)
	require.Equal(t, 2, back.Imported)
}

func TestFormatReward(t *testing.T) {
	require.Equal(t, "no reward", FormatReward(nil))
	require.Equal(t, "no reward", FormatReward(&model.Reward{}))
	got := FormatReward(&model.Reward{
		AP:     50,
		Title:  "Ace",
		Items:  []model.RewardItem{{ID: "gem", Quantity: 2}},
		Badges: []string{"b1", "b2"},
	})
	require.Equal(t, `50 AP, title "Ace", gem x2, badges: b1, b2`, got)
}
