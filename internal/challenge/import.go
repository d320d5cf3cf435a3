package challenge

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/verte-zerg/popkit/internal/model"
)

//go:embed schema/challenges.json
var documentSchema []byte

const schemaURL = "schema/challenges.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(documentSchema)); err != nil {
			schemaErr = fmt.Errorf("failed to add challenge schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile challenge schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// EntryError lists the validation errors of one imported entry.
type EntryError struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// ImportResult reports an import. Structural problems set Error and leave
// Success false. Entries that fail validation are listed in Errors and
// skipped.
type ImportResult struct {
	Success    bool              `json:"success"`
	Imported   int               `json:"imported"`
	Errors     []EntryError      `json:"errors,omitempty"`
	Error      string            `json:"error,omitempty"`
	Challenges []model.Challenge `json:"-"`
}

// ImportOptions tunes Import. Zero values use the current time, NewID and
// per-entry validation.
type ImportOptions struct {
	Now            func() time.Time
	NewID          func() string
	SkipValidation bool
}

// Import parses a challenge document with default options.
func Import(data []byte) ImportResult {
	return ImportWith(data, ImportOptions{})
}

// ImportWith parses a challenge document. Each entry is normalized and then
// validated; invalid entries are reported by index.
func ImportWith(data []byte, opts ImportOptions) ImportResult {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !gjson.ValidBytes(data) {
		return ImportResult{Error: "invalid JSON"}
	}
	schema, err := loadSchema()
	if err != nil {
		return ImportResult{Error: err.Error()}
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return ImportResult{Error: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := schema.Validate(instance); err != nil {
		return ImportResult{Error: "Invalid challenge data format"}
	}

	now := opts.Now()
	res := ImportResult{Success: true}
	for i, entry := range gjson.GetBytes(data, "challenges").Array() {
		c := Normalize(decodeEntry(entry), now, opts.NewID)
		if !opts.SkipValidation {
			if errs := Validate(c); len(errs) > 0 {
				res.Errors = append(res.Errors, EntryError{Index: i, Errors: errs})
				continue
			}
		}
		res.Challenges = append(res.Challenges, c)
	}
	res.Imported = len(res.Challenges)
	return res
}

// decodeEntry extracts the known fields of one entry, coercing loosely typed
// values the way a hand-edited file tends to need.
func decodeEntry(e gjson.Result) model.Challenge {
	c := model.Challenge{
		ID:          scalarString(e.Get("id")),
		Title:       scalarString(e.Get("title")),
		Description: scalarString(e.Get("description")),
		Type:        model.ChallengeType(scalarString(e.Get("type"))),
		Difficulty:  model.Difficulty(scalarString(e.Get("difficulty"))),
		Progress:    int(e.Get("progress").Int()),
		Target:      int(e.Get("target").Int()),
		Priority:    int(e.Get("priority").Int()),
		Deadline:    parseDeadline(e.Get("deadline")),
	}
	if r := e.Get("reward"); r.IsObject() {
		var reward model.Reward
		if err := json.Unmarshal([]byte(r.Raw), &reward); err == nil {
			c.Reward = &reward
		}
	}
	if m := e.Get("metadata"); m.IsObject() {
		var meta model.ChallengeMetadata
		if err := json.Unmarshal([]byte(m.Raw), &meta); err == nil {
			c.Metadata = meta
		}
	}
	return c
}

func scalarString(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number:
		return r.String()
	default:
		return ""
	}
}

// parseDeadline accepts RFC 3339 strings and epoch milliseconds.
func parseDeadline(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.String:
		if t, err := time.Parse(time.RFC3339Nano, r.String()); err == nil {
			return t
		}
	case gjson.Number:
		if ms := r.Int(); ms > 0 {
			return time.UnixMilli(ms)
		}
	}
	return time.Time{}
}
