package challenge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/verte-zerg/popkit/internal/model"
)

type recordingRenderer struct {
	mu       sync.Mutex
	renders  int
	progress map[string]int
}

func (r *recordingRenderer) RenderChallenges([]model.Challenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders++
}

func (r *recordingRenderer) UpdateProgress(id string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		r.progress = map[string]int{}
	}
	r.progress[id] = progress
}

type recordingAnnouncer struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAnnouncer) Announce(message string, _ bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
}

func newTestController(opts ...Option) *Controller {
	base := []Option{WithClock(func() time.Time { return testNow })}
	return NewController(append(base, opts...)...)
}

func TestControllerFilterAndSort(t *testing.T) {
	ctrl := newTestController()
	require.NoError(t, ctrl.Load(context.Background(), nil))
	require.Equal(t, 3, ctrl.Count())

	require.NoError(t, ctrl.SetFilter(FilterWeekly))
	list := ctrl.List()
	require.Len(t, list, 1)
	require.Equal(t, "weekly-1", list[0].ID)

	require.NoError(t, ctrl.SetFilter(FilterAll))
	require.NoError(t, ctrl.SetSort(SortProgress))
	ids := []string{}
	for _, c := range ctrl.List() {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"daily-1", "weekly-1", "special-1"}, ids)

	require.NoError(t, ctrl.SetSort(SortTitle))
	require.Equal(t, "special-1", ctrl.List()[0].ID)

	require.ErrorIs(t, ctrl.SetFilter("monthly"), ErrUnknownFilter)
	require.ErrorIs(t, ctrl.SetSort("color"), ErrUnknownSort)
}

func TestControllerAddRemove(t *testing.T) {
	ctrl := newTestController(WithIDGenerator(fixedID("generated")))
	added, err := ctrl.Add(model.Challenge{Title: "New", Description: "Fresh challenge"})
	require.NoError(t, err)
	require.Equal(t, "generated", added.ID)

	_, err = ctrl.Add(model.Challenge{Title: "Again", Description: "Same id"})
	require.ErrorIs(t, err, ErrDuplicateID)

	_, err = ctrl.Add(model.Challenge{ID: "x", Description: "no title"})
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "Title is required")

	got, ok := ctrl.Get("generated")
	require.True(t, ok)
	require.Equal(t, "New", got.Title)
	require.True(t, ctrl.Remove("generated"))
	require.False(t, ctrl.Remove("generated"))
}

func TestUpdateProgressCompletesOnce(t *testing.T) {
	renderer := &recordingRenderer{}
	announcer := &recordingAnnouncer{}
	var completed []string
	ctrl := newTestController(
		WithRenderer(renderer),
		WithAnnouncer(announcer),
		WithCompletionHandler(func(c model.Challenge) { completed = append(completed, c.ID) }),
	)
	require.NoError(t, ctrl.Load(context.Background(), nil))

	require.True(t, ctrl.UpdateProgress("daily-1", 50))
	require.True(t, ctrl.UpdateProgress("daily-1", 12))
	require.False(t, ctrl.UpdateProgress("missing", 1))

	c, _ := ctrl.Get("daily-1")
	require.Equal(t, 10, c.Progress)
	require.True(t, c.Completed)
	require.Equal(t, []string{"daily-1"}, completed)
	require.Equal(t, 10, renderer.progress["daily-1"])
	require.Contains(t, announcer.messages[len(announcer.messages)-1], "50 AP")

	st := ctrl.Statistics()
	require.Equal(t, 1, st.Completions)
	require.Equal(t, "daily-1", st.LastCompleted)
	require.Equal(t, 1, st.Completed)
	require.Equal(t, 1, ctrl.CompletedCount())
	require.Equal(t, 2, ctrl.ActiveCount())
}

func TestUpdatePriorityClamps(t *testing.T) {
	ctrl := newTestController()
	require.NoError(t, ctrl.Load(context.Background(), nil))
	res, err := ctrl.UpdatePriority("weekly-1", 5000)
	require.NoError(t, err)
	require.Equal(t, 2, res.OldValue)
	require.Equal(t, 999, res.NewValue)
	res, err = ctrl.UpdatePriority("weekly-1", -1)
	require.NoError(t, err)
	require.Equal(t, 1, res.NewValue)
	_, err = ctrl.UpdatePriority("missing", 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearch(t *testing.T) {
	ctrl := newTestController()
	require.NoError(t, ctrl.Load(context.Background(), nil))
	require.Len(t, ctrl.Search(""), 3)
	require.Len(t, ctrl.Search("HARD"), 1)
	require.Len(t, ctrl.Search("points"), 1)

	results := ctrl.AdvancedSearch(SearchOptions{Query: "combo"})
	require.Len(t, results, 1)
	require.Equal(t, 5, results[0].RelevanceScore)
	require.Equal(t, []SearchField{FieldTitle, FieldDescription}, results[0].MatchedFields)

	exact := ctrl.AdvancedSearch(SearchOptions{Query: "daily", Fields: []SearchField{FieldType}, ExactMatch: true})
	require.Len(t, exact, 1)
	require.Empty(t, ctrl.AdvancedSearch(SearchOptions{Query: "Daily", Fields: []SearchField{FieldType}, CaseSensitive: true}))
}

func TestCheckExpiredAndIntegrity(t *testing.T) {
	var expired []string
	ctrl := newTestController(WithExpiryHandler(func(c model.Challenge) { expired = append(expired, c.ID) }))
	late := validChallenge("late")
	late.Deadline = testNow.Add(-time.Hour)
	doneLate := validChallenge("done-late")
	doneLate.Deadline = testNow.Add(-time.Hour)
	doneLate.Progress = doneLate.Target
	ctrl.Replace([]model.Challenge{late, doneLate, validChallenge("dup"), validChallenge("dup")})

	res := ctrl.CheckExpired()
	require.Equal(t, 1, res.Processed)
	require.Equal(t, []string{"late"}, expired)
	require.Len(t, res.Notifications, 1)

	integrity := ctrl.Integrity()
	require.False(t, integrity.Valid)
	require.Contains(t, integrity.Issues, "Duplicate challenge IDs found: dup")
	require.Contains(t, integrity.Issues, "1 completed challenges have past deadlines")
}

func TestControllerImportKeepsSetOnFailure(t *testing.T) {
	ctrl := newTestController()
	require.NoError(t, ctrl.Load(context.Background(), nil))
	res := ctrl.Import([]byte(`{"challenges":"nope"}`))
	require.False(t, res.Success)
	require.Equal(t, 3, ctrl.Count())

	res = ctrl.Import([]byte(`{"challenges":[{"id":"only","title":"T","description":"D"}]}`))
	require.True(t, res.Success)
	require.Equal(t, 1, ctrl.Count())

	out, err := ctrl.Export()
	require.NoError(t, err)
	require.Contains(t, string(out), `"only"`)
}

type failingSource struct{}

func (failingSource) Challenges(context.Context) ([]model.Challenge, error) {
	return nil, errors.New("offline")
}

func TestLoadWrapsSourceErrors(t *testing.T) {
	ctrl := newTestController()
	err := ctrl.Load(context.Background(), failingSource{})
	require.ErrorContains(t, err, "failed to load challenges: offline")
}

func TestRefresherStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := newTestController()
	r := NewRefresher(ctrl, StaticSource(DemoChallenges(testNow)), 5*time.Millisecond, nil)
	r.Start(context.Background())
	require.True(t, r.Running())
	require.Eventually(t, func() bool { return ctrl.Count() == 3 }, time.Second, 5*time.Millisecond)

	r.Start(context.Background())
	r.Stop()
	r.Stop()
	require.False(t, r.Running())
}

func TestRefresherConcurrentStarts(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRefresher(newTestController(), StaticSource(DemoChallenges(testNow)), time.Millisecond, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Start(context.Background())
		}()
	}
	wg.Wait()
	require.True(t, r.Running())
	r.Stop()
	require.False(t, r.Running())
}

func TestRefresherStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRefresher(newTestController(), failingSource{}, time.Millisecond, nil)
	r.Start(ctx)
	cancel()
	r.Stop()
}

func TestWatcherReimportsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "challenges.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"challenges":[]}`), 0o644))

	ctrl := newTestController()
	w, err := NewWatcher(ctrl, path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	doc := `{"challenges":[{"id":"w1","title":"Watched","description":"From disk"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	require.Eventually(t, func() bool {
		_, ok := ctrl.Get("w1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
