package runs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScripting Status = "scripting"
	StatusVoicing   Status = "voicing"
	StatusRendering Status = "rendering"
	StatusPolling   Status = "polling"
	StatusSubmitted Status = "submitted"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is the error message set on runs failed because the
// service stopped while they were in flight.
const DaemonStopReason = "Service stopped before the run finished"

var allStatuses = []Status{
	StatusPending,
	StatusScripting,
	StatusVoicing,
	StatusRendering,
	StatusPolling,
	StatusSubmitted,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeStatuses = []Status{
	StatusPending,
	StatusScripting,
	StatusVoicing,
	StatusRendering,
	StatusPolling,
}

// Run is one persisted pipeline execution.
type Run struct {
	ID           string
	Theme        string
	Mode         string
	Status       Status
	FailedStage  string
	ErrorMessage string
	Script       string
	Narration    string
	AudioRef     string
	VideoRef     string
	JobID        string
	Renderer     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the run has finished. A submitted run is terminal
// from the pipeline's point of view: the upstream job continues without us.
func (r *Run) IsTerminal() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusSubmitted:
		return true
	}
	return false
}

// Duration returns how long the run took, or zero when timestamps are missing.
func (r *Run) Duration() time.Duration {
	if r == nil || r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		return 0
	}
	return r.UpdatedAt.Sub(r.CreatedAt)
}

// ParseStatus attempts to map a string into a known run status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// AllStatuses returns the known run statuses in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Summary aggregates run history counts for diagnostics.
type Summary struct {
	Total     int
	Active    int
	Submitted int
	Completed int
	Failed    int
}
