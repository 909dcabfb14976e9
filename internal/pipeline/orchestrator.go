package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reelforge/internal/artifacts"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/poller"
	"reelforge/internal/render"
	"reelforge/internal/runs"
	"reelforge/internal/services"
	"reelforge/internal/textutil"
)

// ScriptProvider writes a short spoken script about a theme.
type ScriptProvider interface {
	GenerateScript(ctx context.Context, theme string) (string, error)
}

// VoiceSynthesizer turns narration into audio/mpeg bytes.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// History records run transitions. *runs.Store satisfies it.
type History interface {
	Create(ctx context.Context, run *runs.Run) error
	Update(ctx context.Context, run *runs.Run) error
	Get(ctx context.Context, id string) (*runs.Run, error)
}

// Deps wires the orchestrator to its providers and stores.
type Deps struct {
	Script ScriptProvider
	Voice  VoiceSynthesizer
	// Renderer must implement render.SyncRenderer or render.AsyncRenderer.
	Renderer  any
	Artifacts *artifacts.Store
	History   History
	Notifier  notifications.Service
	Logger    *slog.Logger
	Poll      poller.Options
	// ArtifactURL turns an artifact path into an externally reachable URL.
	ArtifactURL func(path string) string
}

// Orchestrator runs script, voice and render stages for one theme at a time.
// It holds no per-run state, so concurrent Run calls are safe.
type Orchestrator struct {
	script       ScriptProvider
	voice        VoiceSynthesizer
	syncRender   render.SyncRenderer
	asyncRender  render.AsyncRenderer
	renderer     any
	rendererName string
	artifacts    *artifacts.Store
	history      History
	notifier     notifications.Service
	logger       *slog.Logger
	poll         poller.Options
	artifactURL  func(string) string
}

// New validates deps and builds an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Script == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "script provider required", nil)
	}
	if deps.Voice == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "voice synthesizer required", nil)
	}
	if deps.Artifacts == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "artifact store required", nil)
	}

	o := &Orchestrator{
		script:      deps.Script,
		voice:       deps.Voice,
		renderer:    deps.Renderer,
		artifacts:   deps.Artifacts,
		history:     deps.History,
		notifier:    deps.Notifier,
		logger:      logging.NewComponentLogger(deps.Logger, "pipeline"),
		poll:        deps.Poll,
		artifactURL: deps.ArtifactURL,
	}
	switch r := deps.Renderer.(type) {
	case render.AsyncRenderer:
		o.asyncRender = r
	case render.SyncRenderer:
		o.syncRender = r
	default:
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "renderer must support Render or Submit/Status", nil)
	}
	o.rendererName = render.Name(deps.Renderer)
	if o.notifier == nil {
		o.notifier = notifications.NewNoop()
	}
	if o.artifactURL == nil {
		o.artifactURL = func(path string) string { return path }
	}
	return o, nil
}

// RendererName identifies the configured renderer.
func (o *Orchestrator) RendererName() string { return o.rendererName }

// Async reports whether the renderer works by job submission.
func (o *Orchestrator) Async() bool { return o.asyncRender != nil }

// Artifacts exposes the artifact store for the HTTP surface.
func (o *Orchestrator) Artifacts() *artifacts.Store { return o.artifacts }

// JobStatus fetches one status observation for an async render job.
func (o *Orchestrator) JobStatus(ctx context.Context, jobID string) (render.Status, error) {
	if strings.TrimSpace(jobID) == "" {
		return render.Status{}, services.Wrap(services.ErrValidation, "render", "status", "job id required", nil)
	}
	if o.asyncRender == nil {
		return render.Status{}, services.Wrap(services.ErrValidation, "render", "status",
			o.rendererName+" renderer has no job status", nil)
	}
	return o.asyncRender.Status(ctx, jobID)
}

// runState carries one run through the stages. It never outlives Run.
type runState struct {
	run       *runs.Run
	result    Result
	audio     []byte
	persisted bool
	started   time.Time
}

func (st *runState) transition(state State) {
	st.result.State = state
	st.run.Status = state.runStatus()
}

// Run executes one request. Failures are reported through Result.Err with
// Result.Stage naming the failing stage; no stage is retried.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	mode := req.Mode
	if mode == "" {
		mode = ModeFull
	}
	theme := strings.TrimSpace(req.Theme)

	st, err := o.begin(ctx, theme, mode, strings.TrimSpace(req.ReuseRunID))
	if err != nil {
		o.logger.Warn("run rejected",
			logging.String(logging.FieldEventType, "run_rejected"),
			logging.String("reuse_run_id", req.ReuseRunID),
			logging.Error(err),
		)
		return Result{OK: false, RunID: req.ReuseRunID, Theme: theme, Mode: mode, State: StateIdle, Renderer: o.rendererName, Err: err}
	}

	ctx = services.WithRunID(ctx, st.run.ID)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, st.run.ID)
	}
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("theme", st.run.Theme),
		logging.String("mode", string(mode)),
		logging.String("renderer", o.rendererName),
		logging.Bool("reused", req.ReuseRunID != ""),
	)
	o.record(ctx, logger, st)

	if req.ReuseRunID == "" {
		if err := o.runStage(ctx, st, StageScript, StateScripting, o.scriptStage); err != nil {
			return o.fail(ctx, logger, st, err)
		}
		if err := o.runStage(ctx, st, StageVoice, StateVoicing, o.voiceStage); err != nil {
			return o.fail(ctx, logger, st, err)
		}
	}
	if mode != ModeAudio {
		if err := o.runStage(ctx, st, StageRender, StateRendering, o.renderStage); err != nil {
			return o.fail(ctx, logger, st, err)
		}
	}
	return o.finish(ctx, logger, st)
}

func (o *Orchestrator) begin(ctx context.Context, theme string, mode Mode, reuseID string) (*runState, error) {
	st := &runState{started: time.Now()}
	if reuseID == "" {
		if theme == "" {
			theme = DefaultTheme
		}
		st.run = &runs.Run{ID: artifacts.NewRunID(), Theme: theme, Mode: string(mode), Renderer: o.rendererName}
	} else {
		run, persisted, err := o.loadReused(ctx, reuseID, theme)
		if err != nil {
			return nil, err
		}
		run.Mode = string(mode)
		run.Renderer = o.rendererName
		run.FailedStage = ""
		run.ErrorMessage = ""
		run.JobID = ""
		run.VideoRef = ""
		st.run = run
		st.persisted = persisted

		_, audio, err := o.artifacts.Get(ctx, reuseID, artifacts.NameAudio)
		if err != nil {
			return nil, err
		}
		st.audio = audio
	}

	st.result = Result{
		RunID:     st.run.ID,
		Theme:     st.run.Theme,
		Mode:      mode,
		Script:    st.run.Script,
		Narration: st.run.Narration,
		AudioRef:  st.run.AudioRef,
		Renderer:  o.rendererName,
	}
	st.transition(StateIdle)
	return st, nil
}

// loadReused rebuilds a prior run from history when available, falling back to
// the stored script artifact.
func (o *Orchestrator) loadReused(ctx context.Context, runID, theme string) (*runs.Run, bool, error) {
	if err := artifacts.ValidateRunID(runID); err != nil {
		return nil, false, err
	}
	audio, ok := o.artifacts.Lookup(runID, artifacts.NameAudio)
	if !ok {
		return nil, false, services.Wrap(services.ErrNotFound, "pipeline", "reuse", "run "+runID+" has no audio artifact", nil)
	}

	var run *runs.Run
	persisted := false
	if o.history != nil {
		prior, err := o.history.Get(ctx, runID)
		switch {
		case err == nil:
			run = prior
			persisted = true
		case errors.Is(err, services.ErrNotFound):
		default:
			return nil, false, err
		}
	}
	if run == nil {
		run = &runs.Run{ID: runID}
	}
	if run.Script == "" {
		if _, data, err := o.artifacts.Get(ctx, runID, artifacts.NameScript); err == nil {
			run.Script = string(data)
		}
	}
	if run.Narration == "" {
		run.Narration = textutil.CleanForSpeech(run.Script)
	}
	if theme != "" {
		run.Theme = theme
	}
	if run.Theme == "" {
		run.Theme = DefaultTheme
	}
	run.AudioRef = o.artifactURL(audio.Path())
	return run, persisted, nil
}

type stageFunc func(ctx context.Context, logger *slog.Logger, st *runState) error

func (o *Orchestrator) runStage(ctx context.Context, st *runState, stage Stage, state State, fn stageFunc) error {
	stageCtx := services.WithStage(ctx, string(stage))
	logger := logging.WithContext(stageCtx, o.logger)

	st.transition(state)
	o.record(stageCtx, logger, st)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("state", string(state)),
	)

	started := time.Now()
	if err := fn(stageCtx, logger, st); err != nil {
		return stageFailure(stage, "", err)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started)),
	)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, st *runState, err error) Result {
	stage := StageRender
	if stageErr, ok := AsStageError(err); ok {
		stage = stageErr.Stage
	}
	st.transition(stage.failedState())
	st.run.FailedStage = string(stage)
	st.run.ErrorMessage = strings.TrimSpace(err.Error())
	st.result.OK = false
	st.result.Stage = stage
	st.result.Err = err

	detached := context.WithoutCancel(ctx)
	stageLogger := logging.WithContext(services.WithStage(detached, string(stage)), o.logger)
	logging.ErrorWithContext(stageLogger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorHint, errorHint(stage, err)),
		logging.String("state", string(st.result.State)),
		logging.Bool("timeout", IsTimeout(err)),
		logging.Duration("elapsed", time.Since(st.started)),
		logging.Error(err),
	)
	o.record(detached, logger, st)
	if notifyErr := o.notifier.NotifyRunFailed(detached, st.run.ID, st.run.Theme, string(stage), err); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
	return st.result
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, st *runState) Result {
	st.result.OK = true
	if st.result.Pending {
		st.result.State = StateRendering
		st.run.Status = runs.StatusSubmitted
	} else {
		st.transition(StateDone)
	}

	detached := context.WithoutCancel(ctx)
	o.record(detached, logger, st)
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("status", string(st.run.Status)),
		logging.String("audio_ref", st.result.AudioRef),
		logging.String("video_ref", st.result.VideoRef),
		logging.String("job_id", st.result.JobID),
		logging.Duration("duration", time.Since(st.started)),
	)

	var notifyErr error
	switch {
	case st.result.Pending:
		notifyErr = o.notifier.NotifyRunSubmitted(detached, st.run.ID, st.run.Theme, st.result.JobID)
	case st.result.VideoRef != "":
		notifyErr = o.notifier.NotifyRunCompleted(detached, st.run.ID, st.run.Theme, st.result.VideoRef)
	}
	if notifyErr != nil {
		logger.Debug("completion notification failed", logging.Error(notifyErr))
	}
	return st.result
}

// record persists the run row. History is auxiliary: failures are logged and
// the run continues.
func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, st *runState) {
	if o.history == nil {
		return
	}
	var err error
	if st.persisted {
		err = o.history.Update(ctx, st.run)
	} else {
		err = o.history.Create(ctx, st.run)
		if err == nil {
			st.persisted = true
		}
	}
	if err != nil {
		logging.WarnWithContext(logger, "run history write failed", "history_write_failed",
			logging.String(logging.FieldErrorHint, "check the data directory and runs.db permissions"),
			logging.String(logging.FieldImpact, "run continues but will be missing from history"),
			logging.String("status", string(st.run.Status)),
			logging.Error(err),
		)
	}
}
