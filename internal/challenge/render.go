package challenge

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/stats"
)

var (
	_ Renderer  = (*TextRenderer)(nil)
	_ Announcer = (*LogAnnouncer)(nil)
	_ Source    = (*FileSource)(nil)
	_ Source    = StaticSource(nil)
)

// TextRenderer writes challenges as an aligned table.
type TextRenderer struct {
	W io.Writer
}

// RenderChallenges prints one row per challenge.
func (r *TextRenderer) RenderChallenges(challenges []model.Challenge) {
	if r == nil || r.W == nil {
		return
	}
	if err := ChallengeTable(challenges).Write(r.W); err != nil {
		// Best-effort render; the writer is usually a terminal.
		_ = err
	}
}

// UpdateProgress prints a progress line.
func (r *TextRenderer) UpdateProgress(id string, progress int) {
	if r == nil || r.W == nil {
		return
	}
	if _, err := fmt.Fprintf(r.W, "%s: progress %d\n", id, progress); err != nil {
		_ = err
	}
}

// ChallengeTable lays out challenges for terminal output.
func ChallengeTable(challenges []model.Challenge) stats.Table {
	t := stats.Table{
		Headers:    []string{"ID", "Title", "Type", "Difficulty", "Progress", "Priority", "Deadline", "Reward"},
		RightAlign: map[int]bool{4: true, 5: true},
	}
	for _, ch := range challenges {
		progress := fmt.Sprintf("%d/%d", ch.Progress, ch.Target)
		if isDone(ch) {
			progress += " done"
		}
		t.Rows = append(t.Rows, []string{
			ch.ID,
			ch.Title,
			string(ch.Type),
			string(ch.Difficulty),
			progress,
			fmt.Sprintf("%d", ch.Priority),
			ch.Deadline.Format("2006-01-02 15:04"),
			FormatReward(ch.Reward),
		})
	}
	return t
}

// LogAnnouncer sends announcements to a logger.
type LogAnnouncer struct {
	Logger *zap.Logger
}

// Announce logs the message; assertive messages log at warn level.
func (a *LogAnnouncer) Announce(message string, assertive bool) {
	if a == nil || a.Logger == nil {
		return
	}
	if assertive {
		a.Logger.Warn(message)
		return
	}
	a.Logger.Info(message)
}

// FileSource reads challenges from a JSON document on disk.
type FileSource struct {
	Path string
}

// Challenges imports the file and returns its valid entries. Invalid
// entries are skipped.
func (s *FileSource) Challenges(ctx context.Context) ([]model.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge file: %w", err)
	}
	res := Import(data)
	if !res.Success {
		return nil, fmt.Errorf("failed to import %s: %s", s.Path, res.Error)
	}
	return res.Challenges, nil
}

// StaticSource serves a fixed challenge set.
type StaticSource []model.Challenge

// Challenges returns a copy of the set.
func (s StaticSource) Challenges(context.Context) ([]model.Challenge, error) {
	return append([]model.Challenge(nil), s...), nil
}
