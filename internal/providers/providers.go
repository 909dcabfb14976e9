package providers

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"reelforge/internal/artifacts"
	"reelforge/internal/config"
	"reelforge/internal/notifications"
	"reelforge/internal/pipeline"
	"reelforge/internal/poller"
	"reelforge/internal/services"
	"reelforge/internal/services/elevenlabs"
	"reelforge/internal/services/heygen"
	"reelforge/internal/services/llm"
	"reelforge/internal/services/localrender"
	"reelforge/internal/services/openai"
)

// Script builds the configured script provider.
func Script(cfg *config.Config) (pipeline.ScriptProvider, error) {
	switch cfg.Script.Provider {
	case config.ScriptProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:         cfg.Script.APIKey,
			BaseURL:        cfg.Script.BaseURL,
			Model:          cfg.Script.Model,
			Prompt:         cfg.Script.Prompt,
			SystemPrompt:   cfg.Script.SystemPrompt,
			TimeoutSeconds: cfg.Script.TimeoutSeconds,
		}), nil
	case config.ScriptProviderChat:
		return llm.NewClient(llm.Config{
			APIKey:         cfg.Script.APIKey,
			BaseURL:        cfg.Script.BaseURL,
			Model:          cfg.Script.Model,
			Prompt:         cfg.Script.Prompt,
			SystemPrompt:   cfg.Script.SystemPrompt,
			Referer:        cfg.Script.Referer,
			Title:          cfg.Script.Title,
			TimeoutSeconds: cfg.Script.TimeoutSeconds,
			RetryAttempts:  cfg.Script.RetryAttempts,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "providers", "script", fmt.Sprintf("unknown provider %q", cfg.Script.Provider), nil)
	}
}

// Voice builds the text-to-speech client.
func Voice(cfg *config.Config) *elevenlabs.Client {
	return elevenlabs.NewClient(elevenlabs.Config{
		APIKey:          cfg.Voice.APIKey,
		BaseURL:         cfg.Voice.BaseURL,
		VoiceID:         cfg.Voice.VoiceID,
		ModelID:         cfg.Voice.ModelID,
		Stability:       cfg.Voice.Stability,
		SimilarityBoost: cfg.Voice.SimilarityBoost,
		TimeoutSeconds:  cfg.Voice.TimeoutSeconds,
	})
}

// Renderer builds the configured video renderer. The result implements
// render.AsyncRenderer (heygen) or render.SyncRenderer (local).
func Renderer(cfg *config.Config) (any, error) {
	switch cfg.Render.Provider {
	case config.RenderProviderHeyGen:
		return heygen.NewClient(heygen.Config{
			APIKey:         cfg.Render.APIKey,
			BaseURL:        cfg.Render.BaseURL,
			AvatarID:       cfg.Render.AvatarID,
			LookID:         cfg.Render.LookID,
			AvatarStyle:    cfg.Render.AvatarStyle,
			Width:          cfg.Render.Width,
			Height:         cfg.Render.Height,
			TimeoutSeconds: cfg.Render.TimeoutSeconds,
		}), nil
	case config.RenderProviderLocal:
		workDir := filepath.Join(cfg.Paths.DataDir, "render")
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return nil, fmt.Errorf("create render workdir: %w", err)
		}
		return localrender.New(localrender.Config{
			Command:        cfg.Render.Command,
			Args:           cfg.Render.Args,
			ImagePath:      cfg.Render.ImagePath,
			TimeoutSeconds: cfg.Render.CommandTimeoutSeconds,
			WorkDir:        workDir,
		})
	default:
		return nil, services.Wrap(services.ErrConfiguration, "providers", "render", fmt.Sprintf("unknown provider %q", cfg.Render.Provider), nil)
	}
}

// ArtifactStore opens the configured blob backend and wraps it in an
// indexed store. The index starts empty; call Rebuild to reload it.
func ArtifactStore(cfg *config.Config, logger *slog.Logger) (*artifacts.Store, error) {
	var backend artifacts.Backend
	switch cfg.Artifacts.Backend {
	case config.ArtifactBackendFS:
		fsBackend, err := artifacts.NewFSBackend(cfg.Artifacts.Dir)
		if err != nil {
			return nil, err
		}
		backend = fsBackend
	case config.ArtifactBackendNATS:
		natsBackend, err := artifacts.OpenNATS(cfg.Artifacts.NATSURL, cfg.Artifacts.NATSBucket, cfg.ArtifactTTL())
		if err != nil {
			return nil, err
		}
		backend = natsBackend
	default:
		return nil, services.Wrap(services.ErrConfiguration, "providers", "artifacts", fmt.Sprintf("unknown backend %q", cfg.Artifacts.Backend), nil)
	}
	return artifacts.NewStore(backend, cfg.ArtifactTTL(), artifacts.WithLogger(logger)), nil
}

// PollOptions returns render polling bounds from config.
func PollOptions(cfg *config.Config) poller.Options {
	return poller.Options{
		Interval:  cfg.PollInterval(),
		Timeout:   cfg.PollCeiling(),
		MaxErrors: cfg.Render.MaxStatusErrors,
	}
}

// Orchestrator wires a pipeline from config around an existing artifact
// store and run history. history may be nil.
func Orchestrator(cfg *config.Config, store *artifacts.Store, history pipeline.History, notifier notifications.Service, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	script, err := Script(cfg)
	if err != nil {
		return nil, err
	}
	renderer, err := Renderer(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Deps{
		Script:      script,
		Voice:       Voice(cfg),
		Renderer:    renderer,
		Artifacts:   store,
		History:     history,
		Notifier:    notifier,
		Logger:      logger,
		Poll:        PollOptions(cfg),
		ArtifactURL: cfg.ArtifactURL,
	})
}
