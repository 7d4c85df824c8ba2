package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"

	"redub/internal/ledger"
)

var statusTitler = cases.Title(xlanguage.English)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and manage recorded dubbing runs",
	}

	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsClearCommand(ctx))

	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []ledger.Status
			if statusFilter != "" {
				status, ok := ledger.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			runs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.RunID),
					filepath.Base(run.SourcePath),
					run.SourceLang + ">" + run.TargetLang,
					statusTitler.String(string(run.Status)),
					formatDuration(time.Since(run.UpdatedAt).Truncate(time.Second)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Source", "Langs", "Status", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Total: %d (%d active, %d completed, %d failed)\n",
				health.Total, health.Active, health.Completed, health.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show runs in this status")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := findRun(cmd, store, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:        %s\n", run.RunID)
			fmt.Fprintf(out, "Source:     %s\n", run.SourcePath)
			fmt.Fprintf(out, "Languages:  %s -> %s\n", run.SourceLang, run.TargetLang)
			fmt.Fprintf(out, "Status:     %s\n", statusTitler.String(string(run.Status)))
			fmt.Fprintf(out, "Created:    %s\n", run.CreatedAt.Local().Format(time.RFC1123))
			fmt.Fprintf(out, "Updated:    %s\n", run.UpdatedAt.Local().Format(time.RFC1123))
			if run.TranscriptFile != "" {
				fmt.Fprintf(out, "Transcript: %s\n", run.TranscriptFile)
			}
			if run.SubtitleFile != "" {
				fmt.Fprintf(out, "Subtitles:  %s\n", run.SubtitleFile)
			}
			if run.TranslatedFile != "" {
				fmt.Fprintf(out, "Translated: %s\n", run.TranslatedFile)
			}
			if run.OutputFile != "" {
				fmt.Fprintf(out, "Dubbed:     %s\n", run.OutputFile)
			}
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:      %s\n", run.ErrorMessage)
			}
			return nil
		},
	}
}

func newRunsClearCommand(ctx *commandContext) *cobra.Command {
	var (
		clearAll       bool
		clearCompleted bool
		clearFailed    bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var (
				removed int64
				label   string
			)
			switch {
			case clearAll:
				removed, err = store.Clear(cmd.Context())
				label = "runs"
			case clearFailed:
				removed, err = store.ClearFailed(cmd.Context())
				label = "failed runs"
			case clearCompleted:
				removed, err = store.ClearCompleted(cmd.Context())
				label = "completed runs"
			default:
				return fmt.Errorf("specify one of --completed, --failed, or --all")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every recorded run")
	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove completed runs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed runs")

	return cmd
}

// findRun resolves a full or prefixed run UUID.
func findRun(cmd *cobra.Command, store *ledger.Store, id string) (*ledger.Run, error) {
	id = strings.TrimSpace(id)
	run, err := store.GetByRunID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := store.List(cmd.Context())
	if err != nil {
		return nil, err
	}
	var matches []*ledger.Run
	for _, candidate := range runs {
		if strings.HasPrefix(candidate.RunID, id) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no run found matching %q", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous (%d matches)", id, len(matches))
	}
}
