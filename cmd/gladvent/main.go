package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/config"
	"github.com/adrian-goe/gladvent/internal/logging"
	"github.com/adrian-goe/gladvent/internal/report"
	"github.com/adrian-goe/gladvent/internal/solution"
)

var (
	// Global flags
	verbose    bool
	configPath string
	year       int

	// Set up by PersistentPreRunE
	cfg  *config.Config
	logs = logging.Nop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gladvent",
	Short: "Run Advent of Code solutions",
	Long: `gladvent runs puzzle solutions written as Go scripts.

Solutions live in <solutions_dir>/<year>/day_<N>.go and define Parse, Pt1 and
Pt2. Inputs live in <input_dir>/<year>/<N>.txt. A crash in one day or one part
is reported and never stops the rest of the batch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("year") {
			loaded.Year = year
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded

		logs, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logs.Get(logging.CategoryBoot).Debug("Config loaded",
			zap.String("path", configPath),
			zap.Int("year", cfg.Year),
			zap.String("solutions", cfg.SolutionsDir),
			zap.String("inputs", cfg.InputDir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logs.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().IntVar(&year, "year", 0, "Puzzle year (default: from config, else the current year)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runAllCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logs.Root().Debug("Command failed", zap.Error(err))
		logs.Sync()
		fmt.Fprintln(os.Stderr, styleFailure(report.Layered(err)))
		stop()
		os.Exit(1)
	}
}

// buildRegistry interprets every solution script once for the batch.
func buildRegistry() (*solution.Registry, error) {
	reg, err := solution.NewScriptLoader(cfg.SolutionsDir, logs.Get(logging.CategoryRegistry)).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to generate package interface: %w", err)
	}
	return reg, nil
}
