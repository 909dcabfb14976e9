package config

const (
	defaultConfigPath = "~/.config/reelforge/config.toml"
	dotEnvFile        = ".env"

	defaultHost    = "0.0.0.0"
	defaultPort    = "10000"
	defaultDataDir = "~/.local/share/reelforge"
	defaultLogDir  = "~/.local/share/reelforge/logs"

	ScriptProviderOpenAI = "openai"
	ScriptProviderChat   = "chat"

	defaultScriptProvider       = ScriptProviderOpenAI
	defaultScriptModel          = "gpt-4o-mini"
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultChatBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultScriptTimeoutSeconds = 60
	defaultScriptRetryAttempts  = 1
	defaultScriptReferer        = "https://github.com/reelforge/reelforge"
	defaultScriptTitle          = "reelforge"
	defaultScriptPrompt         = "Écris un script court (20 secondes) pour un short vidéo sur le thème suivant : {theme}. Donne un secret ou un fait surprenant que peu de gens connaissent. Réponds uniquement avec le texte à dire à voix haute."
	defaultScriptSystemPrompt   = "Tu écris des scripts de vidéos courtes, parlés, en une seule voix, sans indications de scène."

	defaultVoiceBaseURL         = "https://api.elevenlabs.io"
	defaultVoiceID              = "S34Lf5UZYzO1wH9Swlpd"
	defaultVoiceStability       = 0.4
	defaultVoiceSimilarity      = 0.8
	defaultVoiceTimeoutSeconds  = 60
	defaultRenderTimeoutSeconds = 30

	RenderProviderHeyGen = "heygen"
	RenderProviderLocal  = "local"

	defaultRenderProvider        = RenderProviderHeyGen
	defaultRenderBaseURL         = "https://api.heygen.com"
	defaultAvatarID              = "808459e6cc0e4cfbb4175f0fd9e61f30"
	defaultAvatarStyle           = "normal"
	defaultRenderWidth           = 720
	defaultRenderHeight          = 1280
	defaultPollIntervalSeconds   = 5
	defaultMaxWaitSeconds        = 180
	defaultMaxStatusErrors       = 3
	defaultCommandTimeoutSeconds = 600

	ArtifactBackendFS   = "fs"
	ArtifactBackendNATS = "nats"

	defaultArtifactBackend  = ArtifactBackendFS
	defaultArtifactTTLHours = 24
	defaultSweepSchedule    = "@every 10m"
	defaultNATSBucket       = "REELFORGE_ARTIFACTS"

	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults. Server.Bind is
// left empty so normalization can honour PORT.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Script: Script{
			Provider:       defaultScriptProvider,
			Model:          defaultScriptModel,
			Prompt:         defaultScriptPrompt,
			SystemPrompt:   defaultScriptSystemPrompt,
			TimeoutSeconds: defaultScriptTimeoutSeconds,
			RetryAttempts:  defaultScriptRetryAttempts,
			Referer:        defaultScriptReferer,
			Title:          defaultScriptTitle,
		},
		Voice: Voice{
			BaseURL:         defaultVoiceBaseURL,
			VoiceID:         defaultVoiceID,
			Stability:       defaultVoiceStability,
			SimilarityBoost: defaultVoiceSimilarity,
			TimeoutSeconds:  defaultVoiceTimeoutSeconds,
		},
		Render: Render{
			Provider:              defaultRenderProvider,
			BaseURL:               defaultRenderBaseURL,
			AvatarID:              defaultAvatarID,
			AvatarStyle:           defaultAvatarStyle,
			Width:                 defaultRenderWidth,
			Height:                defaultRenderHeight,
			TimeoutSeconds:        defaultRenderTimeoutSeconds,
			PollIntervalSeconds:   defaultPollIntervalSeconds,
			MaxWaitSeconds:        defaultMaxWaitSeconds,
			MaxStatusErrors:       defaultMaxStatusErrors,
			CommandTimeoutSeconds: defaultCommandTimeoutSeconds,
		},
		Artifacts: Artifacts{
			Backend:       defaultArtifactBackend,
			TTLHours:      defaultArtifactTTLHours,
			SweepSchedule: defaultSweepSchedule,
			NATSBucket:    defaultNATSBucket,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunCompleted:   true,
			RunFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
