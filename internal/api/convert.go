package api

import (
	"errors"
	"slices"

	"reelforge/internal/pipeline"
	"reelforge/internal/render"
	"reelforge/internal/runs"
)

// PendingMessage is returned by /video while the upstream job is rendering.
const PendingMessage = "Video en cours de génération, consultez /video/status?id= pour suivre le rendu."

// FromRun converts a history record to its API representation.
func FromRun(run *runs.Run) Run {
	if run == nil {
		return Run{}
	}
	dto := Run{
		ID:           run.ID,
		Theme:        run.Theme,
		Mode:         run.Mode,
		Status:       string(run.Status),
		FailedStage:  run.FailedStage,
		ErrorMessage: run.ErrorMessage,
		Script:       run.Script,
		Narration:    run.Narration,
		Audio:        run.AudioRef,
		Video:        run.VideoRef,
		JobID:        run.JobID,
		Renderer:     run.Renderer,
	}
	if !run.CreatedAt.IsZero() {
		dto.CreatedAt = run.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !run.UpdatedAt.IsZero() {
		dto.UpdatedAt = run.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRuns converts a slice of history records.
func FromRuns(list []*runs.Run) []Run {
	out := make([]Run, 0, len(list))
	for _, run := range list {
		if run == nil {
			continue
		}
		out = append(out, FromRun(run))
	}
	return out
}

// MergeRunStats converts run stats keyed by status into a string map with
// every known status present.
func MergeRunStats(stats map[runs.Status]int) map[string]int {
	merged := make(map[string]int, len(runs.AllStatuses()))
	for _, status := range runs.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// FromGenerateResult converts a successful pipeline result into the
// /generate payload.
func FromGenerateResult(res pipeline.Result) GenerateResponse {
	return GenerateResponse{
		OK:        res.OK,
		RunID:     res.RunID,
		Script:    res.Script,
		Narration: res.Narration,
		Audio:     res.AudioRef,
		Video:     res.VideoRef,
		JobID:     res.JobID,
	}
}

// FromVideoResult converts a successful submit-mode result into the /video
// payload.
func FromVideoResult(res pipeline.Result) VideoResponse {
	if res.Pending {
		return VideoResponse{OK: true, RunID: res.RunID, VideoID: res.JobID, Message: PendingMessage}
	}
	return VideoResponse{OK: true, RunID: res.RunID, Video: res.VideoRef}
}

// FromFailure converts a failed pipeline result into an error payload.
func FromFailure(res pipeline.Result) ErrorResponse {
	msg := "unknown failure"
	if res.Err != nil {
		msg = res.Err.Error()
	}
	stage := string(res.Stage)
	if stage == "" {
		var stageErr *pipeline.StageError
		if errors.As(res.Err, &stageErr) {
			stage = string(stageErr.Stage)
		}
	}
	return ErrorResponse{OK: false, RunID: res.RunID, Stage: stage, Error: msg}
}

// FromJobStatus converts a normalized job status for callers that cannot
// relay the upstream payload verbatim.
func FromJobStatus(jobID string, status render.Status) JobStatusResponse {
	return JobStatusResponse{
		OK:     status.State != render.StateFailed,
		ID:     jobID,
		Status: string(status.State),
		Video:  status.VideoURL,
		Detail: status.Detail,
		Raw:    status.Raw,
	}
}

// StageHealthSlice converts pipeline health into API records ordered by name.
func StageHealthSlice(stages []pipeline.StageHealth) []StageHealth {
	out := make([]StageHealth, 0, len(stages))
	for _, stage := range stages {
		out = append(out, StageHealth{Name: stage.Name, Ready: stage.Ready, Detail: stage.Detail})
	}
	slices.SortFunc(out, func(a, b StageHealth) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// FromRunSummary converts history counts to their API representation.
func FromRunSummary(summary runs.Summary) RunSummary {
	return RunSummary{
		Total:     summary.Total,
		Active:    summary.Active,
		Submitted: summary.Submitted,
		Completed: summary.Completed,
		Failed:    summary.Failed,
	}
}
