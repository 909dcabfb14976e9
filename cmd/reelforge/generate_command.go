package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/pipeline"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var theme string
	var modeFlag string
	var reuse string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the pipeline once for a theme",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := pipeline.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			res := eng.pipeline.Run(cmd.Context(), pipeline.Request{
				Theme:      theme,
				Mode:       mode,
				ReuseRunID: strings.TrimSpace(reuse),
			})
			if jsonOut {
				var payload any = api.FromGenerateResult(res)
				if !res.OK {
					payload = api.FromFailure(res)
				}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), res)
			}
			if !res.OK {
				return res.Err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&theme, "theme", "t", pipeline.DefaultTheme, "Theme to write about")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(pipeline.ModeFull), "Run mode: full, submit, or audio")
	cmd.Flags().StringVar(&reuse, "run", "", "Reuse the script and audio of an earlier run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

func printResult(out io.Writer, res pipeline.Result) {
	fmt.Fprintf(out, "Run:       %s\n", res.RunID)
	fmt.Fprintf(out, "Theme:     %s\n", res.Theme)
	fmt.Fprintf(out, "Mode:      %s\n", res.Mode)
	fmt.Fprintf(out, "State:     %s\n", res.State)
	if res.Narration != "" {
		fmt.Fprintf(out, "Narration: %s\n", res.Narration)
	}
	if res.AudioRef != "" {
		fmt.Fprintf(out, "Audio:     %s\n", res.AudioRef)
	}
	if res.VideoRef != "" {
		fmt.Fprintf(out, "Video:     %s\n", res.VideoRef)
	}
	if res.Pending {
		fmt.Fprintf(out, "Job:       %s (rendering upstream)\n", res.JobID)
	}
	if !res.OK && res.Stage != "" {
		fmt.Fprintf(out, "Failed at: %s\n", res.Stage)
	}
}
