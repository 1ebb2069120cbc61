package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/logging"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file and create the year's input and solution directories",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	yearDir := strconv.Itoa(cfg.Year)
	for _, dir := range []string{
		filepath.Join(cfg.InputDir, yearDir),
		filepath.Join(cfg.SolutionsDir, yearDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := cfg.Save(configPath); err != nil {
		return err
	}
	logs.Get(logging.CategoryBoot).Debug("Config written", zap.String("path", configPath))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s for %d\n", configPath, cfg.Year)
	return nil
}
