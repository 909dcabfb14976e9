package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Script provider", statusInfo, cfg.Script.Provider+" / "+cfg.Script.Model, colorize))
			fmt.Fprintln(out, renderStatusLine("Renderer", statusInfo, cfg.Render.Provider, colorize))
			fmt.Fprintln(out, renderStatusLine("Artifact backend", statusInfo, cfg.Artifacts.Backend, colorize))
			fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, yesNo(cfg.Notifications.NtfyTopic != ""), colorize))

			probe := preflight.ProbeDaemon(cfg)
			kind := statusInfo
			if probe.Running {
				kind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", kind, probe.Detail(), colorize))
			if probe.Running {
				if status, err := fetchDaemonStatus(cmd.Context(), cfg); err != nil {
					fmt.Fprintln(out, renderStatusLine("Daemon status", statusWarn, err.Error(), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Daemon address", statusInfo, status.Address, colorize))
				}
			}
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, cfg.LockPath(), colorize))
			fmt.Fprintln(out, renderStatusLine("Run database", statusInfo, cfg.DatabasePath(), colorize))
			if summary, err := ctx.runSummary(cmd.Context()); err != nil {
				fmt.Fprintln(out, renderStatusLine("Run history", statusWarn, err.Error(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Run history", statusInfo, formatRunSummary(summary), colorize))
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			failed := 0
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}
