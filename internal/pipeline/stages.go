package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"reelforge/internal/artifacts"
	"reelforge/internal/logging"
	"reelforge/internal/poller"
	"reelforge/internal/render"
	"reelforge/internal/services"
	"reelforge/internal/textutil"
)

func (o *Orchestrator) scriptStage(ctx context.Context, logger *slog.Logger, st *runState) error {
	script, err := o.script.GenerateScript(ctx, st.run.Theme)
	if err != nil {
		return err
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return services.Wrap(services.ErrExternalTool, "script", "generate", "provider returned an empty script", nil)
	}
	narration := textutil.CleanForSpeech(script)
	if narration == "" {
		return services.Wrap(services.ErrExternalTool, "script", "clean", "script has no speakable text", nil)
	}

	if _, err := o.artifacts.Put(ctx, st.run.ID, artifacts.NameScript, "", []byte(script)); err != nil {
		return fmt.Errorf("store script: %w", err)
	}
	st.run.Script = script
	st.run.Narration = narration
	st.result.Script = script
	st.result.Narration = narration

	logger.Debug("script generated",
		logging.Int("script_chars", len(script)),
		logging.Int("narration_chars", len(narration)),
	)
	return nil
}

func (o *Orchestrator) voiceStage(ctx context.Context, logger *slog.Logger, st *runState) error {
	audio, err := o.voice.Synthesize(ctx, st.run.Narration)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return services.Wrap(services.ErrExternalTool, "voice", "synthesize", "provider returned no audio", nil)
	}
	art, err := o.artifacts.Put(ctx, st.run.ID, artifacts.NameAudio, "audio/mpeg", audio)
	if err != nil {
		return fmt.Errorf("store audio: %w", err)
	}
	st.audio = audio
	st.run.AudioRef = o.artifactURL(art.Path())
	st.result.AudioRef = st.run.AudioRef

	logger.Debug("audio stored",
		logging.Int("bytes", len(audio)),
		logging.String("audio_ref", st.run.AudioRef),
	)
	return nil
}

func (o *Orchestrator) renderStage(ctx context.Context, logger *slog.Logger, st *runState) error {
	req := render.Request{
		RunID:     st.run.ID,
		Script:    st.run.Script,
		Narration: st.run.Narration,
		AudioURL:  st.run.AudioRef,
		Audio:     st.audio,
	}
	if o.asyncRender != nil {
		return o.renderAsync(ctx, logger, st, req)
	}
	return o.renderSync(ctx, logger, st, req)
}

func (o *Orchestrator) renderSync(ctx context.Context, logger *slog.Logger, st *runState, req render.Request) error {
	job, err := o.syncRender.Render(ctx, req)
	if err != nil {
		return stageFailure(StageRender, PhaseSubmit, err)
	}
	if job.State != render.StateCompleted {
		return stageFailure(StageRender, PhaseSubmit,
			services.Wrap(services.ErrExternalTool, "render", "render", fmt.Sprintf("renderer returned state %q", job.State), nil))
	}

	videoRef := job.VideoURL
	if len(job.Video) > 0 {
		art, err := o.artifacts.Put(ctx, st.run.ID, artifacts.NameVideo, "video/mp4", job.Video)
		if err != nil {
			return fmt.Errorf("store video: %w", err)
		}
		videoRef = o.artifactURL(art.Path())
	}
	if videoRef == "" {
		return stageFailure(StageRender, PhaseSubmit,
			services.Wrap(services.ErrExternalTool, "render", "render", "renderer produced no video", nil))
	}
	st.run.JobID = job.ID
	st.run.VideoRef = videoRef
	st.result.JobID = job.ID
	st.result.VideoRef = videoRef
	logger.Debug("video rendered", logging.String("video_ref", videoRef), logging.Int("bytes", len(job.Video)))
	return nil
}

func (o *Orchestrator) renderAsync(ctx context.Context, logger *slog.Logger, st *runState, req render.Request) error {
	job, err := o.asyncRender.Submit(ctx, req)
	if err != nil {
		return stageFailure(StageRender, PhaseSubmit, err)
	}
	if strings.TrimSpace(job.ID) == "" {
		return stageFailure(StageRender, PhaseSubmit,
			services.Wrap(services.ErrExternalTool, "render", "submit", "provider returned no job id", nil))
	}
	st.run.JobID = job.ID
	st.result.JobID = job.ID
	logger.Info("render job submitted",
		logging.String(logging.FieldEventType, "render_submitted"),
		logging.String("job_id", job.ID),
	)

	if job.State == render.StateCompleted && job.VideoURL != "" {
		st.run.VideoRef = job.VideoURL
		st.result.VideoRef = job.VideoURL
		return nil
	}
	if st.result.Mode == ModeSubmit {
		st.result.Pending = true
		return nil
	}

	st.transition(StatePolling)
	o.record(ctx, logger, st)

	status, err := o.waitForJob(ctx, logger, job.ID)
	if err != nil {
		return stageFailure(StageRender, PhasePoll, err)
	}
	if status.State != render.StateCompleted {
		detail := strings.TrimSpace(status.Detail)
		if detail == "" {
			detail = "render job failed"
		}
		return stageFailure(StageRender, PhasePoll,
			services.Wrap(services.ErrExternalTool, "render", "poll", detail, nil))
	}
	st.run.VideoRef = status.VideoURL
	st.result.VideoRef = status.VideoURL
	return nil
}

func (o *Orchestrator) waitForJob(ctx context.Context, logger *slog.Logger, jobID string) (render.Status, error) {
	opts := o.poll
	opts.OnError = func(err error, consecutive int) {
		logging.WarnWithContext(logger, "render status check failed", "render_status_error",
			logging.String(logging.FieldErrorHint, "transient upstream error; polling continues"),
			logging.String(logging.FieldImpact, "render completion may be detected late"),
			logging.Int("consecutive", consecutive),
			logging.Error(err),
		)
	}

	task := poller.Start(ctx, opts, func(ctx context.Context) (render.Status, bool, error) {
		status, err := o.asyncRender.Status(ctx, jobID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrValidation) {
				return status, false, poller.Permanent(err)
			}
			return status, false, err
		}
		logger.Debug("render status", logging.String("job_id", jobID), logging.String("state", string(status.State)))
		return status, status.State.Terminal(), nil
	})
	status, err := task.Wait(ctx)
	logger.Info("render polling finished",
		logging.String(logging.FieldEventType, "render_poll_done"),
		logging.String("job_id", jobID),
		logging.Int("attempts", task.Attempts()),
		logging.Duration("elapsed", task.Elapsed()),
		logging.Bool("ok", err == nil),
	)
	return status, err
}
