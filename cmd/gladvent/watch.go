package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/logging"
	"github.com/adrian-goe/gladvent/internal/report"
	"github.com/adrian-goe/gladvent/internal/task"
	"github.com/adrian-goe/gladvent/internal/watch"
)

var watchExample bool

var watchCmd = &cobra.Command{
	Use:   "watch <day>...",
	Short: "Re-run days whenever their solution or input changes",
	Long: `Runs the given days once, then again every time a watched solution
script or input file is saved. Scripts are re-interpreted on every run.
Press Ctrl-C to stop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchExample, "example", false, "Use the example input instead of the puzzle input")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ids, err := parseDays(cfg.Year, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	log := logs.Get(logging.CategoryWatch)

	rerun := func(ctx context.Context, changed []task.ID) {
		fmt.Fprintln(out, styleMuted(fmt.Sprintf("--- running %s ---", describe(changed))))
		// Scripts are reloaded so edits take effect.
		reg, err := buildRegistry()
		if err != nil {
			fmt.Fprintln(out, styleFailure(report.Layered(err)))
			return
		}
		if err := executeBatch(ctx, out, reg, changed, batchFlags{example: watchExample}, false); err != nil {
			log.Warn("Run failed", zap.Error(err))
		}
	}

	yearDir := strconv.Itoa(cfg.Year)
	w, err := watch.New(watch.Options{
		Dirs: []string{
			filepath.Join(cfg.SolutionsDir, yearDir),
			filepath.Join(cfg.InputDir, yearDir),
		},
		Tasks:      ids,
		Debounce:   cfg.GetWatchDebounce(),
		OnChange:   rerun,
		RunOnStart: true,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	<-ctx.Done()
	return nil
}

func describe(ids []task.ID) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += id.String()
	}
	return s
}
