package render

import (
	"context"
	"encoding/json"
	"strings"
)

// State is the normalized lifecycle state of a render job.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether polling must stop at this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ParseState maps an upstream status string onto a State. Unrecognized
// values are terminal failures so a drifting upstream never polls forever.
func ParseState(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "waiting", "processing":
		return StatePending
	case "completed":
		return StateCompleted
	default:
		return StateFailed
	}
}

// Request carries everything a renderer needs for one run.
type Request struct {
	RunID string
	// Script is the raw model output and Narration the text that was spoken.
	Script    string
	Narration string
	// AudioURL is an externally reachable URL for hosted renderers.
	AudioURL string
	// AudioPath is a local file path for command renderers.
	AudioPath string
	Audio     []byte
}

// Job is the handle returned by a render submission.
type Job struct {
	ID       string
	State    State
	VideoURL string
	// Video holds rendered bytes for renderers that produce a local file.
	Video []byte
}

// Status is one observation of an asynchronous job.
type Status struct {
	State    State
	VideoURL string
	Detail   string
	Raw      json.RawMessage
}

// SyncRenderer produces a finished video in a single call.
type SyncRenderer interface {
	Render(ctx context.Context, req Request) (Job, error)
}

// AsyncRenderer accepts a job and exposes its status for polling.
type AsyncRenderer interface {
	Submit(ctx context.Context, req Request) (Job, error)
	Status(ctx context.Context, jobID string) (Status, error)
}

// Name returns a short label for a renderer used in logs and health output.
func Name(r any) string {
	if named, ok := r.(interface{ Name() string }); ok {
		return named.Name()
	}
	switch r.(type) {
	case AsyncRenderer:
		return "async"
	case SyncRenderer:
		return "sync"
	default:
		return "unknown"
	}
}
