package challenge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/popkit/internal/model"
)

var (
	// ErrNotFound is returned when no challenge has the requested id.
	ErrNotFound = errors.New("challenge not found")
	// ErrInvalid is returned when a challenge fails validation.
	ErrInvalid = errors.New("validation failed")
	// ErrDuplicateID is returned when adding a challenge whose id is taken.
	ErrDuplicateID = errors.New("duplicate challenge id")
	// ErrUnknownFilter is returned for unsupported filter names.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrUnknownSort is returned for unsupported sort fields.
	ErrUnknownSort = errors.New("unknown sort field")
)

// Filter selects which challenges List returns.
type Filter string

// Filters.
const (
	FilterAll       Filter = "all"
	FilterDaily     Filter = "daily"
	FilterWeekly    Filter = "weekly"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter converts a name into a Filter. Empty selects all.
func ParseFilter(name string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterDaily, FilterWeekly, FilterActive, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
}

// SortField orders the challenges List returns.
type SortField string

// Sort fields.
const (
	SortPriority   SortField = "priority"
	SortDifficulty SortField = "difficulty"
	SortProgress   SortField = "progress"
	SortDeadline   SortField = "deadline"
	SortTitle      SortField = "title"
	SortType       SortField = "type"
)

// ParseSortField converts a name into a SortField. Empty selects priority.
func ParseSortField(name string) (SortField, error) {
	switch s := SortField(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return SortPriority, nil
	case SortPriority, SortDifficulty, SortProgress, SortDeadline, SortTitle, SortType:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSort, name)
	}
}

// Source supplies the current challenge set.
type Source interface {
	Challenges(ctx context.Context) ([]model.Challenge, error)
}

// Renderer displays challenges.
type Renderer interface {
	RenderChallenges(challenges []model.Challenge)
	UpdateProgress(id string, progress int)
}

// Announcer delivers short status messages to the player. Assertive
// messages interrupt whatever is being announced.
type Announcer interface {
	Announce(message string, assertive bool)
}

type nopRenderer struct{}

func (nopRenderer) RenderChallenges([]model.Challenge) {}
func (nopRenderer) UpdateProgress(string, int)         {}

type nopAnnouncer struct{}

func (nopAnnouncer) Announce(string, bool) {}

// Option configures a Controller.
type Option func(*Controller)

// WithRenderer sets the renderer notified after every change.
func WithRenderer(r Renderer) Option {
	return func(c *Controller) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithAnnouncer sets the announcer for progress and expiry messages.
func WithAnnouncer(a Announcer) Option {
	return func(c *Controller) {
		if a != nil {
			c.announcer = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides id generation for new challenges.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		c.newID = gen
	}
}

// WithCompletionHandler registers a callback for newly completed challenges.
func WithCompletionHandler(fn func(model.Challenge)) Option {
	return func(c *Controller) {
		c.onComplete = fn
	}
}

// WithExpiryHandler registers a callback for expired challenges.
func WithExpiryHandler(fn func(model.Challenge)) Option {
	return func(c *Controller) {
		c.onExpire = fn
	}
}

// WithValidateOnImport toggles per-entry validation during Import.
func WithValidateOnImport(v bool) Option {
	return func(c *Controller) {
		c.validateOnImport = v
	}
}

// Controller owns a challenge set and the operations on it. It is safe for
// concurrent use. Collaborators are called without the lock held.
type Controller struct {
	mu               sync.Mutex
	challenges       []model.Challenge
	filter           Filter
	sortBy           SortField
	completions      int
	lastCompleted    string
	lastUpdated      time.Time
	validateOnImport bool

	renderer   Renderer
	announcer  Announcer
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	onComplete func(model.Challenge)
	onExpire   func(model.Challenge)
}

// NewController returns an empty Controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		filter:           FilterAll,
		sortBy:           SortPriority,
		validateOnImport: true,
		renderer:         nopRenderer{},
		announcer:        nopAnnouncer{},
		logger:           zap.NewNop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the challenge set with the contents of src. A nil src loads
// the demo challenges.
func (c *Controller) Load(ctx context.Context, src Source) error {
	var challenges []model.Challenge
	if src == nil {
		challenges = DemoChallenges(c.now())
	} else {
		var err error
		challenges, err = src.Challenges(ctx)
		if err != nil {
			return fmt.Errorf("failed to load challenges: %w", err)
		}
	}
	c.Replace(challenges)
	c.announcer.Announce(fmt.Sprintf("loaded %d challenges", len(challenges)), false)
	return nil
}

// Replace swaps in a new challenge set.
func (c *Controller) Replace(challenges []model.Challenge) {
	c.mu.Lock()
	c.challenges = append([]model.Challenge(nil), challenges...)
	c.lastUpdated = c.now()
	c.mu.Unlock()
	c.render()
}

// LastUpdated reports when the set was last replaced.
func (c *Controller) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// All returns every challenge in insertion order.
func (c *Controller) All() []model.Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Challenge(nil), c.challenges...)
}

// List returns the challenges selected by the current filter, in the current
// sort order.
func (c *Controller) List() []model.Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() []model.Challenge {
	return sortChallenges(filterChallenges(c.challenges, c.filter), c.sortBy)
}

// SetFilter changes the filter and re-renders.
func (c *Controller) SetFilter(f Filter) error {
	f, err := ParseFilter(string(f))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	c.render()
	return nil
}

// SetSort changes the sort order and re-renders.
func (c *Controller) SetSort(s SortField) error {
	s, err := ParseSortField(string(s))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sortBy = s
	c.mu.Unlock()
	c.render()
	return nil
}

// Add normalizes, validates and stores a challenge.
func (c *Controller) Add(partial model.Challenge) (model.Challenge, error) {
	normalized := Normalize(partial, c.now(), c.newID)
	if errs := Validate(normalized); len(errs) > 0 {
		return model.Challenge{}, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, ", "))
	}
	c.mu.Lock()
	if c.indexLocked(normalized.ID) >= 0 {
		c.mu.Unlock()
		return model.Challenge{}, fmt.Errorf("%w: %s", ErrDuplicateID, normalized.ID)
	}
	c.challenges = append(c.challenges, normalized)
	c.mu.Unlock()
	c.render()
	return normalized, nil
}

// Remove deletes a challenge, reporting whether it existed.
func (c *Controller) Remove(id string) bool {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.challenges = append(c.challenges[:idx], c.challenges[idx+1:]...)
	c.mu.Unlock()
	c.render()
	return true
}

// Get returns the challenge with the given id.
func (c *Controller) Get(id string) (model.Challenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.indexLocked(id); idx >= 0 {
		return c.challenges[idx], true
	}
	return model.Challenge{}, false
}

// Count returns the number of challenges.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.challenges)
}

// ActiveCount returns the number of unfinished challenges.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(filterChallenges(c.challenges, FilterActive))
}

// CompletedCount returns the number of finished challenges.
func (c *Controller) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(filterChallenges(c.challenges, FilterCompleted))
}

func (c *Controller) indexLocked(id string) int {
	for i := range c.challenges {
		if c.challenges[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateProgress sets progress, clamped to [0, target]. Crossing the target
// fires the completion handler once. It reports whether the id exists.
func (c *Controller) UpdateProgress(id string, progress int) bool {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	ch := &c.challenges[idx]
	old := ch.Progress
	ch.Progress = ClampProgress(progress, ch.Target)
	ch.Completed = isDone(*ch)
	completed := ch.Completed && old < ch.Target
	if completed {
		c.completions++
		c.lastCompleted = ch.ID
	}
	updated := *ch
	c.mu.Unlock()

	if completed {
		c.announcer.Announce(fmt.Sprintf("%q completed! Reward: %s", updated.Title, FormatReward(updated.Reward)), true)
		if c.onComplete != nil {
			c.onComplete(updated)
		}
		c.logger.Info("challenge completed", zap.String("id", updated.ID))
	}
	c.render()
	c.renderer.UpdateProgress(updated.ID, updated.Progress)
	return true
}

// UpdateResult describes a field change.
type UpdateResult struct {
	Challenge model.Challenge
	OldValue  int
	NewValue  int
}

// UpdatePriority sets priority, clamped to the valid range.
func (c *Controller) UpdatePriority(id string, priority int) (UpdateResult, error) {
	c.mu.Lock()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return UpdateResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ch := &c.challenges[idx]
	res := UpdateResult{OldValue: ch.Priority, NewValue: ClampPriority(priority)}
	ch.Priority = res.NewValue
	res.Challenge = *ch
	resort := c.sortBy == SortPriority
	c.mu.Unlock()
	if resort {
		c.render()
	}
	return res, nil
}

// Search returns challenges whose title, description, type, difficulty or
// tags contain query, ignoring case. A blank query returns everything.
func (c *Controller) Search(query string) []model.Challenge {
	all := c.All()
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return all
	}
	var out []model.Challenge
	for _, ch := range all {
		if strings.Contains(strings.ToLower(ch.Title), term) ||
			strings.Contains(strings.ToLower(ch.Description), term) ||
			strings.Contains(strings.ToLower(string(ch.Type)), term) ||
			strings.Contains(strings.ToLower(string(ch.Difficulty)), term) ||
			tagsContain(ch.Metadata.Tags, term) {
			out = append(out, ch)
		}
	}
	return out
}

func tagsContain(tags []string, term string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// ExpiredResult lists challenges whose deadline passed unfinished.
type ExpiredResult struct {
	Expired       []model.Challenge
	Processed     int
	Notifications []string
}

// CheckExpired finds unfinished challenges past their deadline and fires the
// expiry handler for each.
func (c *Controller) CheckExpired() ExpiredResult {
	now := c.now()
	var res ExpiredResult
	for _, ch := range c.All() {
		if ch.Deadline.Before(now) && !isDone(ch) {
			res.Expired = append(res.Expired, ch)
		}
	}
	res.Processed = len(res.Expired)
	if res.Processed == 0 {
		return res
	}
	msg := fmt.Sprintf("%d challenges have expired", res.Processed)
	c.announcer.Announce(msg, true)
	res.Notifications = append(res.Notifications, msg)
	for _, ch := range res.Expired {
		if c.onExpire != nil {
			c.onExpire(ch)
		}
		c.logger.Info("challenge expired", zap.String("id", ch.ID))
	}
	return res
}

// IntegrityResult reports consistency problems across the set.
type IntegrityResult struct {
	Valid  bool
	Issues []string
}

// Integrity checks for duplicate ids, invalid entries and completed
// challenges with past deadlines.
func (c *Controller) Integrity() IntegrityResult {
	all := c.All()
	var res IntegrityResult
	seen := map[string]bool{}
	var dups []string
	for _, ch := range all {
		if seen[ch.ID] {
			dups = append(dups, ch.ID)
		}
		seen[ch.ID] = true
	}
	if len(dups) > 0 {
		res.Issues = append(res.Issues, "Duplicate challenge IDs found: "+strings.Join(dups, ", "))
	}
	for i, ch := range all {
		if errs := Validate(ch); len(errs) > 0 {
			res.Issues = append(res.Issues, fmt.Sprintf("Challenge %d (%s): %s", i, ch.ID, strings.Join(errs, ", ")))
		}
	}
	now := c.now()
	stale := 0
	for _, ch := range all {
		if ch.Deadline.Before(now) && isDone(ch) {
			stale++
		}
	}
	if stale > 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("%d completed challenges have past deadlines", stale))
	}
	res.Valid = len(res.Issues) == 0
	return res
}

// ControllerStats extends Statistics with completion bookkeeping.
type ControllerStats struct {
	Statistics
	Completions   int    `json:"completions"`
	LastCompleted string `json:"lastCompleted,omitempty"`
}

// Statistics summarizes the current set.
func (c *Controller) Statistics() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ControllerStats{
		Statistics:    Summarize(c.challenges),
		Completions:   c.completions,
		LastCompleted: c.lastCompleted,
	}
}

// Import replaces the set with the valid entries of a challenge document.
// The set is left untouched when nothing could be imported.
func (c *Controller) Import(data []byte) ImportResult {
	res := ImportWith(data, ImportOptions{Now: c.now, NewID: c.newID, SkipValidation: !c.validateOnImport})
	if !res.Success {
		c.logger.Warn("challenge import failed", zap.String("error", res.Error))
		return res
	}
	if res.Imported > 0 {
		c.Replace(res.Challenges)
		c.announcer.Announce(fmt.Sprintf("imported %d challenges", res.Imported), false)
	}
	if len(res.Errors) > 0 {
		c.logger.Warn("skipped invalid challenges", zap.Int("count", len(res.Errors)))
	}
	return res
}

// Export encodes the full set.
func (c *Controller) Export() ([]byte, error) {
	return Export(c.All(), c.now())
}

func (c *Controller) render() {
	c.mu.Lock()
	view := c.viewLocked()
	c.mu.Unlock()
	c.renderer.RenderChallenges(view)
}

func filterChallenges(challenges []model.Challenge, f Filter) []model.Challenge {
	out := make([]model.Challenge, 0, len(challenges))
	for _, ch := range challenges {
		switch f {
		case FilterDaily:
			if ch.Type != model.ChallengeDaily {
				continue
			}
		case FilterWeekly:
			if ch.Type != model.ChallengeWeekly {
				continue
			}
		case FilterActive:
			if isDone(ch) {
				continue
			}
		case FilterCompleted:
			if !isDone(ch) {
				continue
			}
		}
		out = append(out, ch)
	}
	return out
}

// sortChallenges orders a copy of challenges. Progress sorts by completion
// ratio, highest first; every other field sorts ascending.
func sortChallenges(challenges []model.Challenge, by SortField) []model.Challenge {
	out := append([]model.Challenge(nil), challenges...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch by {
		case SortPriority:
			return a.Priority < b.Priority
		case SortDifficulty:
			return a.Difficulty.Rank() < b.Difficulty.Rank()
		case SortProgress:
			return ratio(a) > ratio(b)
		case SortDeadline:
			return a.Deadline.Before(b.Deadline)
		case SortTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case SortType:
			return a.Type < b.Type
		default:
			return false
		}
	})
	return out
}

// FormatReward renders a reward as a short phrase.
func FormatReward(r *model.Reward) string {
	if r == nil {
		return "no reward"
	}
	var parts []string
	if r.AP > 0 {
		parts = append(parts, fmt.Sprintf("%d AP", r.AP))
	}
	if r.Title != "" {
		parts = append(parts, fmt.Sprintf("title %q", r.Title))
	}
	for _, item := range r.Items {
		name := item.Name
		if name == "" {
			name = item.ID
		}
		parts = append(parts, fmt.Sprintf("%s x%d", name, item.Quantity))
	}
	if len(r.Badges) > 0 {
		parts = append(parts, "badges: "+strings.Join(r.Badges, ", "))
	}
	if len(parts) == 0 {
		return "no reward"
	}
	return strings.Join(parts, ", ")
}
