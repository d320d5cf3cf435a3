// Package datafile reads and writes the plain files popkit works from:
// play logs and JSON lines of gesture samples or outcomes.
package datafile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/verte-zerg/popkit/internal/model"
)

// ErrNoPlays is returned when a play log holds no usable plays.
var ErrNoPlays = errors.New("no plays found")

const maxLine = 1 << 20

// ReadPlaysFile reads a play log from path; "-" reads stdin.
func ReadPlaysFile(path string) ([]model.Play, []string, error) {
	data, err := readAll(path)
	if err != nil {
		return nil, nil, err
	}
	return ParsePlays(data)
}

// ParsePlays accepts three layouts: JSON lines of plays, a JSON array of
// plays, or an object mapping stage ids to arrays of plays. Timestamps may
// be RFC 3339 strings or Unix milliseconds. Entries that are not objects
// or lack a stage are skipped with a warning.
func ParsePlays(data []byte) ([]model.Play, []string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, ErrNoPlays
	}
	var plays []model.Play
	var warnings []string
	add := func(where string, stage string, r gjson.Result) {
		if !r.IsObject() {
			warnings = append(warnings, fmt.Sprintf("%s: not an object", where))
			return
		}
		p, err := decodePlay(stage, r)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", where, err))
			return
		}
		plays = append(plays, p)
	}

	switch {
	case data[0] == '[' && gjson.ValidBytes(data):
		gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
			add(fmt.Sprintf("entry %d", k.Int()), "", v)
			return true
		})
	case data[0] == '{' && gjson.ValidBytes(data) && !looksLikePlay(gjson.ParseBytes(data)):
		gjson.ParseBytes(data).ForEach(func(stage, list gjson.Result) bool {
			if !list.IsArray() {
				warnings = append(warnings, fmt.Sprintf("stage %s: not an array", stage.String()))
				return true
			}
			list.ForEach(func(k, v gjson.Result) bool {
				add(fmt.Sprintf("stage %s entry %d", stage.String(), k.Int()), stage.String(), v)
				return true
			})
			return true
		})
	default:
		line := 0
		for _, raw := range bytes.Split(data, []byte("\n")) {
			line++
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] == '#' {
				continue
			}
			if !gjson.ValidBytes(raw) {
				warnings = append(warnings, fmt.Sprintf("line %d: invalid JSON", line))
				continue
			}
			add(fmt.Sprintf("line %d", line), "", gjson.ParseBytes(raw))
		}
	}
	if len(plays) == 0 {
		return nil, warnings, ErrNoPlays
	}
	return plays, warnings, nil
}

func looksLikePlay(r gjson.Result) bool {
	return r.Get("score").Exists() || r.Get("stage").Type == gjson.String
}

func decodePlay(stage string, r gjson.Result) (model.Play, error) {
	if s := r.Get("stage"); s.Type == gjson.String && s.String() != "" {
		stage = s.String()
	}
	if stage == "" {
		return model.Play{}, errors.New("missing stage")
	}
	p := model.Play{
		Stage:          stage,
		Score:          r.Get("score").Float(),
		CompletionTime: r.Get("completionTime").Float(),
		Accuracy:       r.Get("accuracy").Float(),
	}
	ts, err := parseTimestamp(r.Get("timestamp"))
	if err != nil {
		return model.Play{}, err
	}
	p.Timestamp = ts
	return p, nil
}

func parseTimestamp(r gjson.Result) (time.Time, error) {
	switch r.Type {
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC(), nil
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, r.String())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", r.String())
		}
		return t, nil
	case gjson.Null:
		if !r.Exists() {
			return time.Time{}, errors.New("missing timestamp")
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %s", r.Raw)
}

// WritePlays writes plays as JSON lines.
func WritePlays(w io.Writer, plays []model.Play) error {
	enc := json.NewEncoder(w)
	for _, p := range plays {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to write play: %w", err)
		}
	}
	return nil
}

// ReadLines decodes JSON lines from r into values of T. A document that
// is a single JSON array is accepted as well. Blank lines and lines
// starting with # are skipped.
func ReadLines[T any](r io.Reader) ([]T, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if first == '[' {
		var out []T
		if err := json.NewDecoder(br).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode array: %w", err)
		}
		return out, nil
	}

	var out []T
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return out, nil
}

// ReadLinesFile is ReadLines over a file path; "-" reads stdin.
func ReadLinesFile[T any](path string) ([]T, error) {
	if path == "-" {
		return ReadLines[T](os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a read-only file.
			_ = cerr
		}
	}()
	return ReadLines[T](f)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}

func readAll(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
