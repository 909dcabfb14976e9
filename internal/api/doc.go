// Package api defines wire-format types and converters for the HTTP surface
// and the CLI. It translates pipeline results and run history records into
// transport-friendly DTOs without coupling consumers to internal types.
//
// # Key Types
//
// GenerateResponse / VideoResponse / ErrorResponse: the /generate and /video
// payloads. Failures carry the pipeline stage that produced them.
//
// Run: transport representation of a run history entry.
//
// HealthResponse: stage readiness for /health and the doctor command.
//
// # Converters
//
// FromGenerateResult, FromVideoResult, FromFailure: pipeline.Result to payload.
//
// FromRun / FromRuns: runs.Run to Run.
//
// StageHealthSlice: deterministic ordering of stage health.
//
// # Design Notes
//
// JSON tags are snake_case to match the historical routes (run_id,
// video_id). Timestamps use RFC3339 with milliseconds.
package api
