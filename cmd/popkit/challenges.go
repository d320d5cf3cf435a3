package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/popkit/internal/challenge"
	"github.com/verte-zerg/popkit/internal/config"
	"github.com/verte-zerg/popkit/internal/model"
	"github.com/verte-zerg/popkit/internal/store"
)

var (
	challengesFile     string
	challengesValidate bool
	challengesSort     string
	challengesFilter   string
	challengesSearch   string
	challengesDemo     bool
	challengesOut      string
	challengesRefresh  time.Duration
)

func newChallengesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenges",
		Short: "Import, export and inspect challenges",
	}
	cmd.PersistentFlags().BoolVar(&challengesValidate, "validate", true, "reject invalid entries on import")
	cmd.AddCommand(newChallengesImportCmd())
	cmd.AddCommand(newChallengesExportCmd())
	cmd.AddCommand(newChallengesListCmd())
	cmd.AddCommand(newChallengesStatsCmd())
	cmd.AddCommand(newChallengesProgressCmd())
	cmd.AddCommand(newChallengesRemoveCmd())
	cmd.AddCommand(newChallengesWatchCmd())
	return cmd
}

func applyChallengesConfig(cmd *cobra.Command, c config.ChallengesConfig) {
	applyBoolConfig(cmd, "validate", &challengesValidate, c.Validate)
	if cmd.Flags().Lookup("sort") != nil {
		applyStringConfig(cmd, "sort", &challengesSort, c.Sort)
	}
	if cmd.Flags().Lookup("file") != nil {
		applyStringConfig(cmd, "file", &challengesFile, c.File)
	}
	if cmd.Flags().Lookup("refresh") != nil {
		applyDurationConfig(cmd, "refresh", &challengesRefresh, c.Refresh)
	}
}

func newController(opts ...challenge.Option) *challenge.Controller {
	base := []challenge.Option{
		challenge.WithLogger(logger),
		challenge.WithAnnouncer(&challenge.LogAnnouncer{Logger: logger}),
		challenge.WithValidateOnImport(challengesValidate),
	}
	return challenge.NewController(append(base, opts...)...)
}

// loadStoredChallenges opens the store and loads its challenges into a
// new controller. The caller closes the store.
func loadStoredChallenges(ctx context.Context, opts ...challenge.Option) (*store.Store, *challenge.Controller, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	ctrl := newController(opts...)
	if err := ctrl.Load(ctx, st); err != nil {
		closeStore(st)
		return nil, nil, err
	}
	return st, ctrl, nil
}

func newChallengesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the stored challenges with a challenge document",
		Args:  cobra.ExactArgs(1),
		RunE:  runChallengesImportCmd,
	}
}

func runChallengesImportCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyChallengesConfig(cmd, fileCfg.Challenges)
	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	ctrl := newController()
	res := ctrl.Import(data)
	for _, e := range res.Errors {
		for _, msg := range e.Errors {
			logErrf("entry %d: %s\n", e.Index, msg)
		}
	}
	if !res.Success {
		return fmt.Errorf("failed to import challenges: %s", res.Error)
	}
	if res.Imported == 0 {
		return fmt.Errorf("no valid challenges to import")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	if err := replaceStored(cmd.Context(), st, ctrl.All()); err != nil {
		return err
	}
	logErrf("Imported %d challenges, skipped %d\n", res.Imported, len(res.Errors))
	return nil
}

// replaceStored makes the stored set equal to challenges.
func replaceStored(ctx context.Context, st *store.Store, challenges []model.Challenge) error {
	existing, err := st.Challenges(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored challenges: %w", err)
	}
	keep := make(map[string]bool, len(challenges))
	for _, ch := range challenges {
		keep[ch.ID] = true
	}
	for _, ch := range existing {
		if keep[ch.ID] {
			continue
		}
		if _, err := st.DeleteChallenge(ctx, ch.ID); err != nil {
			return fmt.Errorf("failed to delete challenge %s: %w", ch.ID, err)
		}
	}
	if err := st.SaveChallenges(ctx, challenges); err != nil {
		return fmt.Errorf("failed to save challenges: %w", err)
	}
	return nil
}

func newChallengesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored challenges as a challenge document",
		Args:  cobra.NoArgs,
		RunE:  runChallengesExportCmd,
	}
	cmd.Flags().StringVar(&challengesOut, "out", "-", "output file (- for stdout)")
	return cmd
}

func runChallengesExportCmd(cmd *cobra.Command, _ []string) error {
	st, ctrl, err := loadStoredChallenges(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)
	data, err := ctrl.Export()
	if err != nil {
		return fmt.Errorf("failed to export challenges: %w", err)
	}
	if challengesOut == "-" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(challengesOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", challengesOut, err)
	}
	logErrf("Exported %d challenges to %s\n", ctrl.Count(), challengesOut)
	return nil
}

func newChallengesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored challenges",
		Args:  cobra.NoArgs,
		RunE:  runChallengesListCmd,
	}
	cmd.Flags().StringVar(&challengesFilter, "filter", "", "all, daily, weekly, active or completed")
	cmd.Flags().StringVar(&challengesSort, "sort", string(challenge.SortPriority), "priority, difficulty, progress, deadline, title or type")
	cmd.Flags().StringVar(&challengesSearch, "search", "", "only challenges matching the query")
	cmd.Flags().BoolVar(&challengesDemo, "demo", false, "store the demo challenges when none are stored")
	return cmd
}

func runChallengesListCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyChallengesConfig(cmd, fileCfg.Challenges)
	filter, err := challenge.ParseFilter(challengesFilter)
	if err != nil {
		return err
	}
	sortField, err := challenge.ParseSortField(challengesSort)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, ctrl, err := loadStoredChallenges(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)
	if ctrl.Count() == 0 && challengesDemo {
		demo := challenge.DemoChallenges(time.Now())
		if err := st.SaveChallenges(ctx, demo); err != nil {
			return fmt.Errorf("failed to save demo challenges: %w", err)
		}
		ctrl.Replace(demo)
	}
	if err := ctrl.SetFilter(filter); err != nil {
		return err
	}
	if err := ctrl.SetSort(sortField); err != nil {
		return err
	}

	list := ctrl.List()
	if challengesSearch != "" {
		list = ctrl.Search(challengesSearch)
	}
	if len(list) == 0 {
		logErrln("No challenges.")
		return nil
	}
	return challenge.ChallengeTable(list).Write(cmd.OutOrStdout())
}

func newChallengesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored challenges",
		Args:  cobra.NoArgs,
		RunE:  runChallengesStatsCmd,
	}
}

func runChallengesStatsCmd(cmd *cobra.Command, _ []string) error {
	st, ctrl, err := loadStoredChallenges(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore(st)
	s := ctrl.Statistics()
	integrity := ctrl.Integrity()
	out := cmd.OutOrStdout()
	lines := []string{
		fmt.Sprintf("Total: %d  Active: %d  Completed: %d", s.Total, s.Active, s.Completed),
		fmt.Sprintf("Completion rate: %d%%  Average progress: %d%%", s.CompletionRate, s.AverageProgress),
	}
	lines = append(lines, countLines("Type", s.ByType)...)
	lines = append(lines, countLines("Difficulty", s.ByDifficulty)...)
	if integrity.Valid {
		lines = append(lines, "Integrity: ok")
	} else {
		for _, issue := range integrity.Issues {
			lines = append(lines, "Integrity: "+issue)
		}
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newChallengesProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <value>",
		Short: "Set the progress of a stored challenge",
		Args:  cobra.ExactArgs(2),
		RunE:  runChallengesProgressCmd,
	}
}

func runChallengesProgressCmd(cmd *cobra.Command, args []string) error {
	progress, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid progress %q: %w", args[1], err)
	}
	ctx := cmd.Context()
	st, ctrl, err := loadStoredChallenges(ctx, challenge.WithCompletionHandler(func(ch model.Challenge) {
		logErrf("Completed %s: %s\n", ch.ID, ch.Title)
	}))
	if err != nil {
		return err
	}
	defer closeStore(st)
	if !ctrl.UpdateProgress(args[0], progress) {
		return fmt.Errorf("challenge %s not found", args[0])
	}
	ch, _ := ctrl.Get(args[0])
	if err := st.SaveChallenges(ctx, []model.Challenge{ch}); err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d\n", ch.ID, ch.Progress, ch.Target)
	return err
}

func newChallengesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a stored challenge",
		Args:  cobra.ExactArgs(1),
		RunE:  runChallengesRemoveCmd,
	}
}

func runChallengesRemoveCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	ok, err := st.DeleteChallenge(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	if !ok {
		return fmt.Errorf("challenge %s not found", args[0])
	}
	return nil
}

func newChallengesWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload a challenge document whenever it changes",
		Args:  cobra.NoArgs,
		RunE:  runChallengesWatchCmd,
	}
	cmd.Flags().StringVar(&challengesFile, "file", config.DefaultChallengesPath(), "challenge document to watch")
	cmd.Flags().DurationVar(&challengesRefresh, "refresh", defaultRefresh, "periodic reload interval (0 disables)")
	cmd.Flags().StringVar(&challengesSort, "sort", string(challenge.SortPriority), "priority, difficulty, progress, deadline, title or type")
	return cmd
}

func runChallengesWatchCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyChallengesConfig(cmd, fileCfg.Challenges)
	sortField, err := challenge.ParseSortField(challengesSort)
	if err != nil {
		return err
	}
	if challengesRefresh < 0 {
		return fmt.Errorf("--refresh must be >= 0")
	}

	ctrl := newController(challenge.WithRenderer(&challenge.TextRenderer{W: cmd.OutOrStdout()}))
	if err := ctrl.SetSort(sortField); err != nil {
		return err
	}
	watcher, err := challenge.NewWatcher(ctrl, challengesFile, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			logErrf("failed to close watcher: %v\n", cerr)
		}
	}()
	if res, err := watcher.Reload(); err != nil {
		logErrf("%v\n", err)
	} else if !res.Success {
		logErrf("failed to import %s: %s\n", challengesFile, res.Error)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if challengesRefresh > 0 {
		refresher := challenge.NewRefresher(ctrl, &challenge.FileSource{Path: challengesFile}, challengesRefresh, logger)
		refresher.Start(ctx)
		defer refresher.Stop()
	}
	logErrf("Watching %s (ctrl+c to stop)\n", challengesFile)
	return watcher.Run(ctx)
}

func countLines[K ~string](label string, counts map[K]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s %s: %d", label, k, counts[K(k)]))
	}
	return out
}
