package pipeline

import (
	"context"
	"errors"

	"reelforge/internal/services"
)

// Phase narrows a render failure to submission or polling.
type Phase string

const (
	PhaseSubmit Phase = "submit"
	PhasePoll   Phase = "poll"
)

// StageError names the stage that failed a run. The wrapped error keeps its
// services marker so callers can still classify it.
type StageError struct {
	Stage Stage
	Phase Phase
	Err   error
}

func (e *StageError) Error() string {
	label := string(e.Stage)
	if e.Phase != "" {
		label += " " + string(e.Phase)
	}
	if e.Err == nil {
		return label + " failed"
	}
	return label + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

func stageFailure(stage Stage, phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var existing *StageError
	if errors.As(err, &existing) {
		return err
	}
	return &StageError{Stage: stage, Phase: phase, Err: err}
}

// AsStageError extracts the StageError from err's chain.
func AsStageError(err error) (*StageError, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr, true
	}
	return nil, false
}

// IsScriptError reports whether err failed the script stage.
func IsScriptError(err error) bool { return isStage(err, StageScript) }

// IsVoiceError reports whether err failed the voice stage.
func IsVoiceError(err error) bool { return isStage(err, StageVoice) }

// IsRenderError reports whether err failed the render stage.
func IsRenderError(err error) bool { return isStage(err, StageRender) }

// IsTimeout reports whether err is a deadline or poll ceiling.
func IsTimeout(err error) bool {
	return errors.Is(err, services.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsConfigError reports whether err stems from missing or invalid configuration.
func IsConfigError(err error) bool {
	return services.IsConfigError(err)
}

func isStage(err error, stage Stage) bool {
	stageErr, ok := AsStageError(err)
	return ok && stageErr.Stage == stage
}

func errorHint(stage Stage, err error) string {
	if IsTimeout(err) && stage == StageRender {
		return "raise render.max_wait_seconds or check the render provider queue"
	}
	if IsConfigError(err) {
		return "run 'reelforge config validate' and fix the reported setting"
	}
	switch stage {
	case StageScript:
		return "check script.api_key, script.model and the provider status"
	case StageVoice:
		return "check voice.api_key, voice.voice_id and the remaining character quota"
	case StageRender:
		return "check render settings and that server.public_base_url is reachable by the provider"
	default:
		return "check logs for details"
	}
}
