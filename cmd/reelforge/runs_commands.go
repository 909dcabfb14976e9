package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/runs"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsStatsCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withHistory(func(store *runs.Store) error {
				list, err := api.NewRunService(store).List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.RunListResponse{Runs: list})
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRunTable(list))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", runs.DefaultListLimit, "Maximum runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *runs.Store) error {
				run, err := api.NewRunService(store).Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				if jsonOut {
					return writeJSON(cmd, api.RunResponse{Run: *run})
				}
				printRun(cmd.OutOrStdout(), *run)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func newRunsStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count runs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *runs.Store) error {
				counts, err := api.NewRunService(store).Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.RunStatsResponse{Counts: counts})
				}
				rows := make([][]string, 0, len(counts))
				for _, status := range runs.AllStatuses() {
					rows = append(rows, []string{string(status), fmt.Sprintf("%d", counts[string(status)])})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Runs"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func parseStatuses(values []string) ([]runs.Status, error) {
	var statuses []runs.Status
	for _, value := range values {
		status, ok := runs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func renderRunTable(list []api.Run) string {
	rows := make([][]string, 0, len(list))
	for _, run := range list {
		rows = append(rows, []string{
			api.ShortID(run.ID),
			truncate(run.Theme, 40),
			run.Mode,
			run.Status,
			run.FailedStage,
			run.CreatedAt,
		})
	}
	return renderTable([]string{"ID", "Theme", "Mode", "Status", "Failed", "Created"}, rows, nil)
}

func printRun(out io.Writer, run api.Run) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-10s %s\n", label+":", value)
		}
	}
	field("ID", run.ID)
	field("Theme", run.Theme)
	field("Mode", run.Mode)
	field("Status", run.Status)
	field("Stage", run.FailedStage)
	field("Error", run.ErrorMessage)
	field("Renderer", run.Renderer)
	field("Audio", run.Audio)
	field("Video", run.Video)
	field("Job", run.JobID)
	field("Created", run.CreatedAt)
	field("Updated", run.UpdatedAt)
	if run.Narration != "" {
		fmt.Fprintf(out, "\nNarration:\n%s\n", run.Narration)
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
