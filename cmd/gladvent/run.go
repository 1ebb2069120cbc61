package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/crash"
	"github.com/adrian-goe/gladvent/internal/history"
	"github.com/adrian-goe/gladvent/internal/input"
	"github.com/adrian-goe/gladvent/internal/logging"
	"github.com/adrian-goe/gladvent/internal/orchestrator"
	"github.com/adrian-goe/gladvent/internal/pipeline"
	"github.com/adrian-goe/gladvent/internal/report"
	"github.com/adrian-goe/gladvent/internal/solution"
	"github.com/adrian-goe/gladvent/internal/task"
)

// batchFlags are shared by run and run-all.
type batchFlags struct {
	timeoutMs  int
	allowCrash bool
	example    bool
	workers    int
	record     bool
}

var (
	runFlags    batchFlags
	runAllFlags batchFlags
)

var runCmd = &cobra.Command{
	Use:   "run <day>...",
	Short: "Run the given days",
	Example: `  gladvent run 1 2 3
  gladvent run 5 --example --allow-crash
  gladvent run 7 --timeout=2000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDays,
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every registered day of the year",
	Args:  cobra.NoArgs,
	RunE:  runAll,
}

func init() {
	addBatchFlags(runCmd, &runFlags, true)
	addBatchFlags(runAllCmd, &runAllFlags, false)
}

func addBatchFlags(cmd *cobra.Command, f *batchFlags, withExample bool) {
	cmd.Flags().IntVar(&f.timeoutMs, "timeout", 0, "Deadline for the whole batch in milliseconds (default: from config, else none)")
	cmd.Flags().BoolVar(&f.allowCrash, "allow-crash", false, "Let crashes in solutions propagate instead of reporting them")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Maximum days running at once (default: from config; 0 = no cap)")
	cmd.Flags().BoolVar(&f.record, "record", false, "Record outcomes in the history database")
	if withExample {
		cmd.Flags().BoolVar(&f.example, "example", false, "Use the example input instead of the puzzle input")
	}
}

func runDays(cmd *cobra.Command, args []string) error {
	ids, err := parseDays(cfg.Year, args)
	if err != nil {
		return err
	}
	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	return executeBatch(cmd.Context(), cmd.OutOrStdout(), reg, ids, runFlags, workersChanged(cmd))
}

func runAll(cmd *cobra.Command, args []string) error {
	reg, err := buildRegistry()
	if err != nil {
		return err
	}
	ids := solution.Days(reg, cfg.Year)
	if len(ids) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No solutions registered for %d\n", cfg.Year)
		return nil
	}
	return executeBatch(cmd.Context(), cmd.OutOrStdout(), reg, ids, runAllFlags, workersChanged(cmd))
}

func workersChanged(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("workers")
	return f != nil && f.Changed
}

func parseDays(year int, args []string) ([]task.ID, error) {
	ids := make([]task.ID, 0, len(args))
	for _, arg := range args {
		id, err := task.ParseDay(year, arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// deadlineFor picks the batch deadline: the flag wins, then the config.
func deadlineFor(f batchFlags) orchestrator.Deadline {
	if f.timeoutMs > 0 {
		return orchestrator.Ending(time.Duration(f.timeoutMs) * time.Millisecond)
	}
	return orchestrator.Ending(cfg.GetDefaultTimeout())
}

func executeBatch(ctx context.Context, out io.Writer, reg solution.Resolver, ids []task.ID, f batchFlags, workersSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	mode := crash.Safe
	if f.allowCrash {
		mode = crash.Strict
	}
	variant := task.Puzzle
	if f.example {
		variant = task.Example
	}
	workers := cfg.Execution.Workers
	if workersSet {
		workers = f.workers
	}

	exec := pipeline.NewExecutor(reg, input.NewLoader(cfg.InputDir), mode, variant, logs.Get(logging.CategoryPipeline))
	orch := orchestrator.New(exec, workers, deadlineFor(f), logs.Get(logging.CategoryOrchestrator))

	outcomes := orch.Run(ctx, ids)
	printOutcomes(out, outcomes)

	if f.record || cfg.History.Enabled {
		if err := recordOutcomes(ctx, variant, outcomes); err != nil {
			logs.Get(logging.CategoryHistory).Warn("Failed to record history", zap.Error(err))
		}
	}
	return nil
}

func printOutcomes(out io.Writer, outcomes []pipeline.Outcome) {
	for i, o := range outcomes {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, styleReport(report.Render(o), o.Completed()))
	}
}

func recordOutcomes(ctx context.Context, variant task.Variant, outcomes []pipeline.Outcome) error {
	store, err := history.Open(cfg.History.Path, logs.Get(logging.CategoryHistory))
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, history.NewBatchID(), variant, outcomes)
}
