// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/popkit/internal/adaptation"
	"github.com/verte-zerg/popkit/internal/challenge"
	"github.com/verte-zerg/popkit/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for play history, gesture preferences and
// challenges.
type Store struct {
	db *sql.DB
}

var (
	_ adaptation.PreferenceStore = (*Store)(nil)
	_ adaptation.RecordStore     = (*Store)(nil)
	_ challenge.Source           = (*Store)(nil)
)

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY,
			stage TEXT NOT NULL,
			score REAL NOT NULL,
			completion_time REAL NOT NULL,
			accuracy REAL NOT NULL,
			played_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS learning_records (
			id INTEGER PRIMARY KEY,
			gesture TEXT NOT NULL,
			success INTEGER NOT NULL,
			confidence REAL NOT NULL,
			duration REAL NOT NULL,
			distance REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS unrecognized_gestures (
			id INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id TEXT PRIMARY KEY,
			priority INTEGER NOT NULL,
			deadline TEXT NOT NULL,
			data TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plays_stage_played_at ON plays(stage, played_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertPlays stores completed plays in one transaction.
func (s *Store) InsertPlays(ctx context.Context, plays []model.Play) (err error) {
	if len(plays) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO plays (stage, score, completion_time, accuracy, played_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, p := range plays {
		if p.Stage == "" {
			return fmt.Errorf("play at %s has no stage", p.Timestamp.Format(time.RFC3339))
		}
		if _, err = stmt.ExecContext(ctx, p.Stage, p.Score, p.CompletionTime, p.Accuracy, p.Timestamp.UTC().Format(timeLayout)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListPlays returns plays matching the filter, oldest first within each
// stage.
func (s *Store) ListPlays(ctx context.Context, filter model.PlayFilter) ([]model.Play, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, stage := range filter.Stages {
			placeholders[i] = "?"
			args = append(args, stage)
		}
		clauses = append(clauses, fmt.Sprintf("stage IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Since != nil {
		clauses = append(clauses, "played_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	last := -1
	if filter.Last > 0 {
		last = filter.Last
	}
	args = append(args, last, last)
	query := fmt.Sprintf(`WITH ranked AS (
		SELECT stage, score, completion_time, accuracy, played_at,
			ROW_NUMBER() OVER (PARTITION BY stage ORDER BY played_at DESC, id DESC) AS rn
		FROM plays
		WHERE %s
	)
	SELECT stage, score, completion_time, accuracy, played_at
	FROM ranked
	WHERE (? < 0 OR rn <= ?)
	ORDER BY stage ASC, played_at ASC`, strings.Join(clauses, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var plays []model.Play
	for rows.Next() {
		var p model.Play
		var playedAt string
		if err := rows.Scan(&p.Stage, &p.Score, &p.CompletionTime, &p.Accuracy, &playedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, playedAt)
		if err != nil {
			return nil, err
		}
		p.Timestamp = parsed
		plays = append(plays, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plays, nil
}

// Load returns the JSON blob saved under key, or nil if there is none.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM preferences WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// Save replaces the JSON blob under key.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC().Format(timeLayout))
	return err
}

// AddLearningRecords appends recs and trims the table to the newest
// adaptation.MaxLearningRecords rows.
func (s *Store) AddLearningRecords(ctx context.Context, recs []model.LearningRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	for _, r := range recs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO learning_records (gesture, success, confidence, duration, distance, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.Gesture, r.Success, r.Confidence, r.Duration, r.Distance, r.Timestamp.UTC().Format(timeLayout)); err != nil {
			return err
		}
	}
	if err = trim(ctx, tx, "learning_records", adaptation.MaxLearningRecords); err != nil {
		return err
	}
	return tx.Commit()
}

// LearningRecords returns up to limit of the newest records, oldest first.
// A limit <= 0 returns every record.
func (s *Store) LearningRecords(ctx context.Context, limit int) ([]model.LearningRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT gesture, success, confidence, duration, distance, recorded_at FROM (
			SELECT id, gesture, success, confidence, duration, distance, recorded_at
			FROM learning_records ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var recs []model.LearningRecord
	for rows.Next() {
		var r model.LearningRecord
		var recordedAt string
		if err := rows.Scan(&r.Gesture, &r.Success, &r.Confidence, &r.Duration, &r.Distance, &recordedAt); err != nil {
			return nil, err
		}
		if r.Timestamp, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// AddUnrecognized appends recs and trims the table to the newest
// adaptation.MaxUnrecognized rows.
func (s *Store) AddUnrecognized(ctx context.Context, recs []model.UnrecognizedGesture) (err error) {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	for _, r := range recs {
		data, merr := json.Marshal(r)
		if merr != nil {
			err = fmt.Errorf("failed to encode unrecognized gesture: %w", merr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO unrecognized_gestures (data, recorded_at) VALUES (?, ?)`,
			string(data), r.Timestamp.UTC().Format(timeLayout)); err != nil {
			return err
		}
	}
	if err = trim(ctx, tx, "unrecognized_gestures", adaptation.MaxUnrecognized); err != nil {
		return err
	}
	return tx.Commit()
}

// Unrecognized returns up to limit of the newest gestures, oldest first.
// A limit <= 0 returns every gesture.
func (s *Store) Unrecognized(ctx context.Context, limit int) ([]model.UnrecognizedGesture, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM (
			SELECT id, data FROM unrecognized_gestures ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var recs []model.UnrecognizedGesture
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r model.UnrecognizedGesture
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode unrecognized gesture: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// SaveChallenges inserts or replaces challenges by id.
func (s *Store) SaveChallenges(ctx context.Context, challenges []model.Challenge) (err error) {
	if len(challenges) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	for _, c := range challenges {
		if c.ID == "" {
			err = errors.New("challenge has no id")
			return err
		}
		data, merr := json.Marshal(c)
		if merr != nil {
			err = fmt.Errorf("failed to encode challenge %s: %w", c.ID, merr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO challenges (id, priority, deadline, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET priority = excluded.priority, deadline = excluded.deadline, data = excluded.data`,
			c.ID, c.Priority, c.Deadline.UTC().Format(timeLayout), string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteChallenge removes a challenge and reports whether it existed.
func (s *Store) DeleteChallenge(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Challenges returns stored challenges ordered by priority, then id.
func (s *Store) Challenges(ctx context.Context) ([]model.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM challenges ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Challenge
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c model.Challenge
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("failed to decode challenge: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func trim(ctx context.Context, tx *sql.Tx, table string, keep int) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE id NOT IN (SELECT id FROM %s ORDER BY id DESC LIMIT ?)`, table, table), keep)
	return err
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
