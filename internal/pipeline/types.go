package pipeline

import (
	"fmt"
	"strings"

	"reelforge/internal/runs"
	"reelforge/internal/services"
)

// DefaultTheme is used when a request carries no theme.
const DefaultTheme = "test"

// Mode selects how far a run goes.
type Mode string

const (
	// ModeFull writes the script, voices it, renders and waits for the video.
	ModeFull Mode = "full"
	// ModeSubmit stops after submitting an asynchronous render job.
	ModeSubmit Mode = "submit"
	// ModeAudio stops after voice synthesis.
	ModeAudio Mode = "audio"
)

// ParseMode maps user input onto a Mode. Empty input selects ModeFull.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeSubmit:
		return ModeSubmit, nil
	case ModeAudio:
		return ModeAudio, nil
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "parse mode",
			fmt.Sprintf("unknown mode %q (want full, submit, or audio)", value), nil)
	}
}

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle         State = "idle"
	StateScripting    State = "scripting"
	StateVoicing      State = "voicing"
	StateRendering    State = "rendering"
	StatePolling      State = "polling"
	StateDone         State = "done"
	StateScriptFailed State = "script_failed"
	StateVoiceFailed  State = "voice_failed"
	StateRenderFailed State = "render_failed"
)

// Failed reports whether the state is one of the failure states.
func (s State) Failed() bool {
	switch s {
	case StateScriptFailed, StateVoiceFailed, StateRenderFailed:
		return true
	}
	return false
}

func (s State) runStatus() runs.Status {
	switch s {
	case StateIdle:
		return runs.StatusPending
	case StateScripting:
		return runs.StatusScripting
	case StateVoicing:
		return runs.StatusVoicing
	case StateRendering:
		return runs.StatusRendering
	case StatePolling:
		return runs.StatusPolling
	case StateDone:
		return runs.StatusCompleted
	default:
		return runs.StatusFailed
	}
}

// Stage names the external step that produced a failure.
type Stage string

const (
	StageScript Stage = "script"
	StageVoice  Stage = "voice"
	StageRender Stage = "render"
)

func (s Stage) failedState() State {
	switch s {
	case StageScript:
		return StateScriptFailed
	case StageVoice:
		return StateVoiceFailed
	default:
		return StateRenderFailed
	}
}

// Request describes one run.
type Request struct {
	Theme string
	Mode  Mode
	// ReuseRunID skips script and voice by reusing a prior run's artifacts.
	ReuseRunID string
}

// Result is the outcome of a run. On failure OK is false and Stage and Err
// describe what went wrong; fields produced before the failure are kept.
type Result struct {
	OK        bool
	RunID     string
	Theme     string
	Mode      Mode
	State     State
	Script    string
	Narration string
	AudioRef  string
	VideoRef  string
	JobID     string
	Pending   bool
	Renderer  string
	Stage     Stage
	Err       error
}

// StageHealth summarizes the readiness of a pipeline stage.
type StageHealth struct {
	Name   string
	Ready  bool
	Detail string
}

// HealthyStage constructs a ready StageHealth record.
func HealthyStage(name string) StageHealth {
	return StageHealth{Name: name, Ready: true}
}

// UnhealthyStage constructs an unhealthy StageHealth record with context detail.
func UnhealthyStage(name, detail string) StageHealth {
	return StageHealth{Name: name, Ready: false, Detail: detail}
}

// AllReady reports whether every stage is ready.
func AllReady(stages []StageHealth) bool {
	for _, stage := range stages {
		if !stage.Ready {
			return false
		}
	}
	return true
}
