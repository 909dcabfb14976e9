package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeScript()
	c.normalizeVoice()
	if err := c.normalizeRender(); err != nil {
		return err
	}
	if err := c.normalizeArtifacts(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		port := defaultPort
		if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
			port = strings.TrimSpace(value)
		}
		c.Server.Bind = net.JoinHostPort(defaultHost, port)
	}
	c.Server.PublicBaseURL = strings.TrimSpace(c.Server.PublicBaseURL)
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = lookupTrimmed("PUBLIC_BASE_URL")
	}
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")
}

func (c *Config) normalizeScript() {
	c.Script.Provider = strings.ToLower(strings.TrimSpace(c.Script.Provider))
	if c.Script.Provider == "" {
		c.Script.Provider = defaultScriptProvider
	}
	c.Script.APIKey = strings.TrimSpace(c.Script.APIKey)
	if c.Script.APIKey == "" {
		c.Script.APIKey = lookupTrimmed("OPENAI_API_KEY")
	}
	c.Script.BaseURL = strings.TrimSpace(c.Script.BaseURL)
	if c.Script.BaseURL == "" {
		if c.Script.Provider == ScriptProviderChat {
			c.Script.BaseURL = defaultChatBaseURL
		} else {
			c.Script.BaseURL = defaultOpenAIBaseURL
		}
	}
	c.Script.Model = strings.TrimSpace(c.Script.Model)
	if c.Script.Model == "" {
		c.Script.Model = defaultScriptModel
	}
	c.Script.Prompt = strings.TrimSpace(c.Script.Prompt)
	if c.Script.Prompt == "" {
		c.Script.Prompt = defaultScriptPrompt
	}
	c.Script.SystemPrompt = strings.TrimSpace(c.Script.SystemPrompt)
	c.Script.Referer = strings.TrimSpace(c.Script.Referer)
	c.Script.Title = strings.TrimSpace(c.Script.Title)
	if c.Script.TimeoutSeconds <= 0 {
		c.Script.TimeoutSeconds = defaultScriptTimeoutSeconds
	}
	if c.Script.RetryAttempts <= 0 {
		c.Script.RetryAttempts = defaultScriptRetryAttempts
	}
}

func (c *Config) normalizeVoice() {
	c.Voice.APIKey = strings.TrimSpace(c.Voice.APIKey)
	if c.Voice.APIKey == "" {
		c.Voice.APIKey = lookupTrimmed("ELEVENLABS_API_KEY")
	}
	c.Voice.BaseURL = strings.TrimRight(strings.TrimSpace(c.Voice.BaseURL), "/")
	if c.Voice.BaseURL == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	c.Voice.VoiceID = strings.TrimSpace(c.Voice.VoiceID)
	if value := lookupTrimmed("ELEVENLABS_VOICE_ID"); value != "" && c.Voice.VoiceID == defaultVoiceID {
		c.Voice.VoiceID = value
	}
	if c.Voice.VoiceID == "" {
		c.Voice.VoiceID = defaultVoiceID
	}
	c.Voice.ModelID = strings.TrimSpace(c.Voice.ModelID)
	if c.Voice.TimeoutSeconds <= 0 {
		c.Voice.TimeoutSeconds = defaultVoiceTimeoutSeconds
	}
}

func (c *Config) normalizeRender() error {
	c.Render.Provider = strings.ToLower(strings.TrimSpace(c.Render.Provider))
	if c.Render.Provider == "" {
		c.Render.Provider = defaultRenderProvider
	}
	c.Render.APIKey = strings.TrimSpace(c.Render.APIKey)
	if c.Render.APIKey == "" {
		c.Render.APIKey = lookupTrimmed("HEYGEN_API_KEY")
	}
	c.Render.BaseURL = strings.TrimRight(strings.TrimSpace(c.Render.BaseURL), "/")
	if c.Render.BaseURL == "" {
		c.Render.BaseURL = defaultRenderBaseURL
	}
	c.Render.AvatarID = strings.TrimSpace(c.Render.AvatarID)
	if value := lookupTrimmed("HEYGEN_AVATAR_ID"); value != "" && c.Render.AvatarID == defaultAvatarID {
		c.Render.AvatarID = value
	}
	if c.Render.AvatarID == "" {
		c.Render.AvatarID = defaultAvatarID
	}
	c.Render.LookID = strings.TrimSpace(c.Render.LookID)
	c.Render.AvatarStyle = strings.TrimSpace(c.Render.AvatarStyle)
	if c.Render.AvatarStyle == "" {
		c.Render.AvatarStyle = defaultAvatarStyle
	}
	if c.Render.Width <= 0 {
		c.Render.Width = defaultRenderWidth
	}
	if c.Render.Height <= 0 {
		c.Render.Height = defaultRenderHeight
	}
	if c.Render.TimeoutSeconds <= 0 {
		c.Render.TimeoutSeconds = defaultRenderTimeoutSeconds
	}
	if c.Render.PollIntervalSeconds == 0 {
		c.Render.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Render.MaxWaitSeconds == 0 {
		c.Render.MaxWaitSeconds = defaultMaxWaitSeconds
	}
	if c.Render.CommandTimeoutSeconds <= 0 {
		c.Render.CommandTimeoutSeconds = defaultCommandTimeoutSeconds
	}
	c.Render.Command = strings.TrimSpace(c.Render.Command)
	var err error
	if c.Render.ImagePath, err = expandPath(strings.TrimSpace(c.Render.ImagePath)); err != nil {
		return fmt.Errorf("render.image_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeArtifacts() error {
	c.Artifacts.Backend = strings.ToLower(strings.TrimSpace(c.Artifacts.Backend))
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = defaultArtifactBackend
	}
	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		c.Artifacts.Dir = filepath.Join(c.Paths.DataDir, "artifacts")
	}
	var err error
	if c.Artifacts.Dir, err = expandPath(c.Artifacts.Dir); err != nil {
		return fmt.Errorf("artifacts.dir: %w", err)
	}
	if c.Artifacts.TTLHours == 0 {
		c.Artifacts.TTLHours = defaultArtifactTTLHours
	}
	c.Artifacts.SweepSchedule = strings.TrimSpace(c.Artifacts.SweepSchedule)
	if c.Artifacts.SweepSchedule == "" {
		c.Artifacts.SweepSchedule = defaultSweepSchedule
	}
	c.Artifacts.NATSURL = strings.TrimSpace(c.Artifacts.NATSURL)
	if c.Artifacts.NATSURL == "" {
		c.Artifacts.NATSURL = lookupTrimmed("NATS_URL")
	}
	c.Artifacts.NATSBucket = strings.TrimSpace(c.Artifacts.NATSBucket)
	if c.Artifacts.NATSBucket == "" {
		c.Artifacts.NATSBucket = defaultNATSBucket
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupTrimmed("NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}

func lookupTrimmed(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
