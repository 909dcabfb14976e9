package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a run history entry in a transport-friendly format.
type Run struct {
	ID           string `json:"id"`
	Theme        string `json:"theme"`
	Mode         string `json:"mode"`
	Status       string `json:"status"`
	FailedStage  string `json:"failed_stage,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
	Script       string `json:"script,omitempty"`
	Narration    string `json:"narration,omitempty"`
	Audio        string `json:"audio,omitempty"`
	Video        string `json:"video,omitempty"`
	JobID        string `json:"job_id,omitempty"`
	Renderer     string `json:"renderer,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// RunListResponse wraps recent runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunResponse wraps a single run.
type RunResponse struct {
	Run Run `json:"run"`
}

// RunStatsResponse provides run counts keyed by status.
type RunStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// GenerateResponse is the /generate success payload.
type GenerateResponse struct {
	OK        bool   `json:"ok"`
	RunID     string `json:"run_id"`
	Script    string `json:"script"`
	Narration string `json:"narration"`
	Audio     string `json:"audio"`
	Video     string `json:"video,omitempty"`
	JobID     string `json:"video_id,omitempty"`
}

// VideoResponse is the /video payload. Video is set when the render finished
// inside the request; otherwise VideoID names the pending upstream job.
type VideoResponse struct {
	OK      bool   `json:"ok"`
	RunID   string `json:"run_id,omitempty"`
	Video   string `json:"video,omitempty"`
	VideoID string `json:"video_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse reports a failed request. Stage is set when a pipeline stage
// produced the error.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	RunID string `json:"run_id,omitempty"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// TestResponse is the liveness payload.
type TestResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse aggregates stage readiness.
type HealthResponse struct {
	OK       bool          `json:"ok"`
	Renderer string        `json:"renderer"`
	Backend  string        `json:"artifact_backend"`
	Stages   []StageHealth `json:"stages"`
}

// RunSummary aggregates run history counts.
type RunSummary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// StatusResponse describes the running daemon for /status.
type StatusResponse struct {
	Running         bool          `json:"running"`
	PID             int           `json:"pid"`
	Address         string        `json:"address"`
	RunDBPath       string        `json:"run_db_path"`
	LockFilePath    string        `json:"lock_file_path"`
	Renderer        string        `json:"renderer"`
	ArtifactBackend string        `json:"artifact_backend"`
	Runs            RunSummary    `json:"runs"`
	Stages          []StageHealth `json:"stages"`
}

// JobStatusResponse is used when the upstream gave no raw payload to relay.
type JobStatusResponse struct {
	OK     bool            `json:"ok"`
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Video  string          `json:"video,omitempty"`
	Detail string          `json:"detail,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}
