package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adrian-goe/gladvent/internal/history"
	"github.com/adrian-goe/gladvent/internal/logging"
	"github.com/adrian-goe/gladvent/internal/task"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <day>",
	Short: "Show recorded runs of a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := task.ParseDay(cfg.Year, args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := history.Open(cfg.History.Path, logs.Get(logging.CategoryHistory))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	runs, err := store.Recent(ctx, id, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No recorded runs for %d day %d\n", id.Year, id.Day)
		return nil
	}
	for i, r := range runs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, formatRun(r))
	}
	return nil
}

func formatRun(r history.Run) string {
	batch := r.BatchID
	if len(batch) > 8 {
		batch = batch[:8]
	}
	header := fmt.Sprintf("%s  %s  %s", r.RanAt.Format(time.DateTime), batch, r.Variant)

	var sb strings.Builder
	if r.Status == history.StatusAborted {
		sb.WriteString(styleFailure(header))
		sb.WriteString("\n")
		sb.WriteString(indent(r.Error))
		return sb.String()
	}
	sb.WriteString(styleReport(header, true))
	fmt.Fprintf(&sb, "\n  Part 1: %s\n  Part 2: %s", r.Part1, r.Part2)
	return sb.String()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
