package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"redub/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staging session directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingPruneCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging session directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			if stagingDir == "" {
				fmt.Fprintln(out, "Staging directory not configured")
				return nil
			}

			dirs, err := staging.ListDirectories(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging sessions found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)
			var totalSize int64
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				age := time.Since(dir.ModTime).Truncate(time.Minute)
				totalSize += dir.Size
				rows = append(rows, []string{shortID(dir.Name), formatDuration(age), formatBytes(dir.Size)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Age", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(out, "Total: %d sessions, %s\n", len(dirs), formatBytes(totalSize))
			return nil
		},
	}
}

func newStagingPruneCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove staging sessions abandoned by crashed runs",
		Long: `Remove staging session directories older than --max-age. Sessions that old
were left behind by interrupted or crashed runs; live runs release their
session on exit. A file lock serializes concurrent prunes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			if stagingDir == "" {
				fmt.Fprintln(out, "Staging directory not configured")
				return nil
			}

			lock := flock.New(filepath.Join(stagingDir, ".prune.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire prune lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another prune is already running on %s", stagingDir)
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			result := staging.CleanStale(cmd.Context(), stagingDir, maxAge, logger)
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No stale staging sessions to prune")
				return nil
			}
			fmt.Fprintf(out, "Removed %d stale sessions\n", len(result.Removed))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Remove sessions older than this")
	return cmd
}
