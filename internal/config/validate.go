package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateScript(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q is not a host:port address: %w", c.Server.Bind, err)
	}
	base := c.Server.PublicBaseURL
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return errors.New("server.public_base_url must start with http:// or https://")
	}
	return nil
}

func (c *Config) validateScript() error {
	switch c.Script.Provider {
	case ScriptProviderOpenAI, ScriptProviderChat:
	default:
		return fmt.Errorf("script.provider must be %q or %q", ScriptProviderOpenAI, ScriptProviderChat)
	}
	if c.Script.APIKey == "" {
		return missingKeyError("script.api_key", "OPENAI_API_KEY")
	}
	if c.Script.Model == "" {
		return errors.New("script.model must be set")
	}
	if !strings.Contains(c.Script.Prompt, "{theme}") {
		return errors.New("script.prompt must contain the {theme} placeholder")
	}
	return ensurePositiveMap(map[string]int{
		"script.timeout_seconds": c.Script.TimeoutSeconds,
		"script.retry_attempts":  c.Script.RetryAttempts,
	})
}

func (c *Config) validateVoice() error {
	if c.Voice.APIKey == "" {
		return missingKeyError("voice.api_key", "ELEVENLABS_API_KEY")
	}
	if c.Voice.VoiceID == "" {
		return errors.New("voice.voice_id must be set")
	}
	if c.Voice.Stability < 0 || c.Voice.Stability > 1 {
		return errors.New("voice.stability must be between 0 and 1")
	}
	if c.Voice.SimilarityBoost < 0 || c.Voice.SimilarityBoost > 1 {
		return errors.New("voice.similarity_boost must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.Provider {
	case RenderProviderHeyGen:
		if c.Render.APIKey == "" {
			return missingKeyError("render.api_key", "HEYGEN_API_KEY")
		}
		if c.Render.AvatarID == "" && c.Render.LookID == "" {
			return errors.New("render.avatar_id or render.look_id must be set")
		}
		if c.Server.PublicBaseURL == "" {
			return errors.New("server.public_base_url must be set when render.provider is heygen so the audio can be fetched (or set PUBLIC_BASE_URL)")
		}
	case RenderProviderLocal:
		if c.Render.Command == "" {
			return errors.New("render.command must be set when render.provider is local")
		}
	default:
		return fmt.Errorf("render.provider must be %q or %q", RenderProviderHeyGen, RenderProviderLocal)
	}
	if err := ensurePositiveMap(map[string]int{
		"render.timeout_seconds":         c.Render.TimeoutSeconds,
		"render.poll_interval_seconds":   c.Render.PollIntervalSeconds,
		"render.max_wait_seconds":        c.Render.MaxWaitSeconds,
		"render.command_timeout_seconds": c.Render.CommandTimeoutSeconds,
		"render.width":                   c.Render.Width,
		"render.height":                  c.Render.Height,
	}); err != nil {
		return err
	}
	if c.Render.PollIntervalSeconds > 60 {
		return errors.New("render.poll_interval_seconds must not exceed 60")
	}
	if c.Render.MaxWaitSeconds < c.Render.PollIntervalSeconds {
		return errors.New("render.max_wait_seconds must be at least render.poll_interval_seconds")
	}
	if c.Render.MaxStatusErrors < 0 {
		return errors.New("render.max_status_errors must not be negative")
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	switch c.Artifacts.Backend {
	case ArtifactBackendFS:
		if c.Artifacts.Dir == "" {
			return errors.New("artifacts.dir must be set")
		}
	case ArtifactBackendNATS:
		if c.Artifacts.NATSURL == "" {
			return errors.New("artifacts.nats_url must be set when artifacts.backend is nats (or set NATS_URL)")
		}
		if c.Artifacts.NATSBucket == "" {
			return errors.New("artifacts.nats_bucket must be set")
		}
	default:
		return fmt.Errorf("artifacts.backend must be %q or %q", ArtifactBackendFS, ArtifactBackendNATS)
	}
	if c.Artifacts.TTLHours <= 0 {
		return errors.New("artifacts.ttl_hours must be positive")
	}
	if _, err := cron.ParseStandard(c.Artifacts.SweepSchedule); err != nil {
		return fmt.Errorf("artifacts.sweep_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}

func missingKeyError(field, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'reelforge config init')", field, env, defaultPath)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
