package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/api"
	"reelforge/internal/pipeline"
)

type batchOutput struct {
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Skipped   []string            `json:"skipped,omitempty"`
	Duration  string              `json:"duration"`
	Runs      []batchOutputResult `json:"runs"`
}

type batchOutputResult struct {
	RunID string `json:"run_id"`
	Theme string `json:"theme"`
	State string `json:"state"`
	Audio string `json:"audio,omitempty"`
	Video string `json:"video,omitempty"`
	JobID string `json:"job_id,omitempty"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var file string
	var workers int
	var modeFlag string
	var threshold float64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "batch [theme...]",
		Short: "Run the pipeline for several themes concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := pipeline.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			themes := append([]string(nil), args...)
			if file != "" {
				fromFile, err := readThemes(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				themes = append(themes, fromFile...)
			}
			if len(themes) == 0 {
				return fmt.Errorf("no themes given (pass them as arguments or with --file)")
			}

			eng, err := ctx.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.pipeline.Batch(cmd.Context(), themes, pipeline.BatchOptions{
				Workers:         workers,
				Mode:            mode,
				DedupeThreshold: threshold,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, toBatchOutput(report))
			}
			printBatch(cmd.OutOrStdout(), report)
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d runs failed", report.Failed, len(report.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read themes from a file, one per line (- for stdin)")
	cmd.Flags().IntVarP(&workers, "workers", "w", pipeline.DefaultBatchWorkers, "Concurrent runs")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(pipeline.ModeFull), "Run mode: full, submit, or audio")
	cmd.Flags().Float64Var(&threshold, "dedupe", pipeline.DefaultDedupeThreshold, "Similarity above which themes count as duplicates (>1 disables)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON")
	return cmd
}

// readThemes reads one theme per line. Blank lines and lines starting with #
// are ignored.
func readThemes(stdin io.Reader, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open themes file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var themes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		themes = append(themes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read themes: %w", err)
	}
	return themes, nil
}

func toBatchOutput(report pipeline.BatchReport) batchOutput {
	out := batchOutput{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		Duration:  report.Duration.Round(time.Millisecond).String(),
		Runs:      make([]batchOutputResult, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		entry := batchOutputResult{
			RunID: res.RunID,
			Theme: res.Theme,
			State: string(res.State),
			Audio: res.AudioRef,
			Video: res.VideoRef,
			JobID: res.JobID,
		}
		if !res.OK {
			failure := api.FromFailure(res)
			entry.Stage = failure.Stage
			entry.Error = failure.Error
		}
		out.Runs = append(out.Runs, entry)
	}
	return out
}

func printBatch(out io.Writer, report pipeline.BatchReport) {
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		outcome := res.VideoRef
		switch {
		case !res.OK:
			outcome = api.FromFailure(res).Error
		case res.Pending:
			outcome = "job " + res.JobID
		case outcome == "":
			outcome = res.AudioRef
		}
		rows = append(rows, []string{api.ShortID(res.RunID), res.Theme, string(res.State), outcome})
	}
	fmt.Fprintln(out, renderTable([]string{"Run", "Theme", "State", "Output"}, rows, nil))
	for _, theme := range report.Skipped {
		fmt.Fprintf(out, "Skipped duplicate theme: %s\n", theme)
	}
	fmt.Fprintf(out, "%d succeeded, %d failed in %s\n", report.Succeeded, report.Failed, report.Duration.Round(time.Millisecond))
}
