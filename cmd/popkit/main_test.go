package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/verte-zerg/popkit/internal/config"
	"github.com/verte-zerg/popkit/internal/generator"
	"github.com/verte-zerg/popkit/internal/gesture"
	"github.com/verte-zerg/popkit/internal/stats"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("POPKIT_CONFIG", filepath.Join(dir, "config.toml"))
	t.Setenv("POPKIT_DB_PATH", filepath.Join(dir, "popkit.db"))
	t.Setenv("POPKIT_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultConfigTemplateKeysAreKnown(t *testing.T) {
	var uncommented []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if strings.HasPrefix(line, "# ") && strings.Contains(line, " = ") {
			line = strings.TrimPrefix(line, "# ")
		}
		uncommented = append(uncommented, line)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, strings.Join(uncommented, "\n"))

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.Analysis.SignificanceLevel == nil || *cfg.Analysis.SignificanceLevel != stats.DefaultConfig().SignificanceLevel {
		t.Fatalf("unexpected significance level: %v", cfg.Analysis.SignificanceLevel)
	}
	if cfg.Challenges.Refresh == nil || cfg.Challenges.Refresh.Duration != defaultRefresh {
		t.Fatalf("unexpected refresh: %v", cfg.Challenges.Refresh)
	}
	if cfg.Gesture.Patterns == nil || *cfg.Gesture.Patterns != config.DefaultPatternsPath() {
		t.Fatalf("unexpected patterns path: %v", cfg.Gesture.Patterns)
	}
}

func TestApplyConfigSkipsChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var words int
	var mode string
	cmd.Flags().IntVar(&words, "words", 1, "")
	cmd.Flags().StringVar(&mode, "mode", "a", "")
	if err := cmd.Flags().Set("words", "5"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	fromFile := 9
	fileMode := "b"
	applyIntConfig(cmd, "words", &words, &fromFile)
	applyStringConfig(cmd, "mode", &mode, &fileMode)
	applyStringConfig(cmd, "mode", &mode, nil)
	if words != 5 {
		t.Fatalf("flag value should win, got %d", words)
	}
	if mode != "b" {
		t.Fatalf("config value should apply, got %q", mode)
	}
}

func TestSplitListAndLabels(t *testing.T) {
	if got := splitList(" a, ,b ,"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %v", got)
	}
	if _, err := parseLabels("only"); err == nil {
		t.Fatalf("expected error for a single label")
	}
	if _, err := parsePValueMode("bogus"); err == nil {
		t.Fatalf("expected error for unknown p-value mode")
	}
}

func TestCompareCommand(t *testing.T) {
	dir := setupEnv(t)
	var a, b []string
	for i := 0; i < 20; i++ {
		a = append(a, fmt.Sprintf("%.1f", 10+float64(i%5)*0.2))
		b = append(b, fmt.Sprintf("%.1f", 20+float64(i%5)*0.2))
	}
	path := filepath.Join(dir, "data.json")
	writeFile(t, path, fmt.Sprintf(`{"dataset1":[%s],"dataset2":[%s]}`, strings.Join(a, ","), strings.Join(b, ",")))

	out, err := runCLI(t, "compare", path, "--json")
	if err != nil {
		t.Fatalf("compare: %v\n%s", err, out)
	}
	var rep stats.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if !rep.Test.Significant {
		t.Fatalf("expected a significant difference: %+v", rep.Test)
	}

	out, err = runCLI(t, "compare", path, "--labels", "before,after")
	if err != nil {
		t.Fatalf("compare text: %v", err)
	}
	if !strings.Contains(out, "before") || !strings.Contains(out, "Significance") {
		t.Fatalf("unexpected text report:\n%s", out)
	}

	writeFile(t, path, `{"dataset1":[1,2,3]}`)
	if _, err := runCLI(t, "compare", path); err == nil {
		t.Fatalf("expected error for a missing dataset")
	}
}

func TestPreprocessCommand(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "data.json")
	writeFile(t, path, `{"dataset1":[1,2,3,4,5,6],"dataset2":[2,4,6,8,10,12]}`)
	out, err := runCLI(t, "preprocess", path, "--normalize", "minmax")
	if err != nil {
		t.Fatalf("preprocess: %v\n%s", err, out)
	}
	if !gjson.Get(out, "success").Bool() {
		t.Fatalf("expected success:\n%s", out)
	}
	if got := gjson.Get(out, "data1.0").Float(); got != 0 {
		t.Fatalf("expected minmax to start at 0, got %v", got)
	}
	if got := gjson.Get(out, "data2.5").Float(); got != 1 {
		t.Fatalf("expected minmax to end at 1, got %v", got)
	}
}

func TestSimulateRecordAnalyze(t *testing.T) {
	dir := setupEnv(t)
	logPath := filepath.Join(dir, "plays.jsonl")
	if out, err := runCLI(t, "simulate", "--stages", "2", "--plays", "8", "--seed", "3", "--out", logPath); err != nil {
		t.Fatalf("simulate: %v\n%s", err, out)
	}
	if out, err := runCLI(t, "record", logPath); err != nil {
		t.Fatalf("record: %v\n%s", err, out)
	}
	out, err := runCLI(t, "analyze", "--last", "5")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	for _, want := range []string{"Stages", "stage_1", "stage_2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "analyze", "--file", logPath, "--stages", "stage_2")
	if err != nil {
		t.Fatalf("analyze file: %v", err)
	}
	if strings.Contains(out, "stage_1") {
		t.Fatalf("stage filter ignored:\n%s", out)
	}
}

func TestGestureRecognizeCommand(t *testing.T) {
	dir := setupEnv(t)
	var target gesture.Pattern
	for _, p := range gesture.Builtins() {
		if !p.OneHandedOnly && p.Type == gesture.TypeSwipe {
			target = p
			break
		}
	}
	sample := generator.NewSeeded(1).Sample(target, 0, time.Now())
	line, err := json.Marshal(sample)
	if err != nil {
		t.Fatalf("encode sample: %v", err)
	}
	path := filepath.Join(dir, "samples.jsonl")
	writeFile(t, path, string(line)+"\n"+`{"type":"touch","fingers":9}`+"\n")

	out, err := runCLI(t, "gesture", "recognize", path)
	if err != nil {
		t.Fatalf("recognize: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 result lines, got %d:\n%s", len(lines), out)
	}
	if got := gjson.Get(lines[0], "result.gesture").String(); got != string(target.Kind) {
		t.Fatalf("expected %s, got %q", target.Kind, got)
	}
	if gjson.Get(lines[1], "recognized").Bool() {
		t.Fatalf("nine finger touch should not be recognized: %s", lines[1])
	}

	out, err = runCLI(t, "gesture", "patterns")
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if !strings.Contains(out, string(target.Kind)) {
		t.Fatalf("pattern table missing %s:\n%s", target.Kind, out)
	}
}

func TestAdaptCommandPersists(t *testing.T) {
	setupEnv(t)
	out, err := runCLI(t, "adapt", "--simulate", "40", "--seed", "5", "--one-handed", "left", "--json")
	if err != nil {
		t.Fatalf("adapt: %v\n%s", err, out)
	}
	if !gjson.Get(out, "oneHandedMode").Bool() {
		t.Fatalf("expected one-handed mode:\n%s", out)
	}
	out, err = runCLI(t, "adapt", "--json")
	if err != nil {
		t.Fatalf("adapt reload: %v", err)
	}
	if !gjson.Get(out, "oneHandedMode").Bool() {
		t.Fatalf("one-handed mode was not persisted:\n%s", out)
	}
}

func TestChallengesImportListExport(t *testing.T) {
	dir := setupEnv(t)
	doc := `{"challenges":[
		{"id":"c1","title":"Pop five","description":"Pop five bubbles","type":"daily","difficulty":"easy","progress":1,"target":5,"priority":2,"deadline":"2099-01-01T00:00:00Z"},
		{"id":"c2","title":"Score big","description":"Score 500 points","type":"weekly","difficulty":"hard","progress":0,"target":500,"priority":1,"deadline":"2099-01-01T00:00:00Z"},
		{"id":"c3","description":"Missing a title","type":"daily","difficulty":"easy","target":5,"priority":3,"deadline":"2099-01-01T00:00:00Z"}
	]}`
	path := filepath.Join(dir, "challenges.json")
	writeFile(t, path, doc)
	if out, err := runCLI(t, "challenges", "import", path); err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}

	out, err := runCLI(t, "challenges", "list", "--filter", "weekly")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "c2") || strings.Contains(out, "c1") {
		t.Fatalf("unexpected weekly list:\n%s", out)
	}

	if out, err := runCLI(t, "challenges", "progress", "c1", "9"); err != nil {
		t.Fatalf("progress: %v\n%s", err, out)
	}
	out, err = runCLI(t, "challenges", "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := gjson.Get(out, "challenges.#").Int(); got != 2 {
		t.Fatalf("expected 2 exported challenges, got %d:\n%s", got, out)
	}
	if got := gjson.Get(out, `challenges.#(id=="c1").progress`).Int(); got != 5 {
		t.Fatalf("progress should clamp to target, got %d", got)
	}
	if !gjson.Get(out, `challenges.#(id=="c1").completed`).Bool() {
		t.Fatalf("c1 should be completed:\n%s", out)
	}

	if _, err := runCLI(t, "challenges", "remove", "c1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := runCLI(t, "challenges", "remove", "c1"); err == nil {
		t.Fatalf("expected error removing a missing challenge")
	}
}
