package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP bind address and the externally reachable base URL.
type Server struct {
	Bind          string `toml:"bind"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Script contains settings for the chat model that writes scripts.
type Script struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Prompt         string `toml:"prompt"`
	SystemPrompt   string `toml:"system_prompt"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
}

// Voice contains text-to-speech settings.
type Voice struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	VoiceID         string  `toml:"voice_id"`
	ModelID         string  `toml:"model_id"`
	Stability       float64 `toml:"stability"`
	SimilarityBoost float64 `toml:"similarity_boost"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// Render contains video rendering settings for both the hosted avatar
// service and the local command renderer.
type Render struct {
	Provider              string   `toml:"provider"`
	APIKey                string   `toml:"api_key"`
	BaseURL               string   `toml:"base_url"`
	AvatarID              string   `toml:"avatar_id"`
	LookID                string   `toml:"look_id"`
	AvatarStyle           string   `toml:"avatar_style"`
	Width                 int      `toml:"width"`
	Height                int      `toml:"height"`
	TimeoutSeconds        int      `toml:"timeout_seconds"`
	PollIntervalSeconds   int      `toml:"poll_interval_seconds"`
	MaxWaitSeconds        int      `toml:"max_wait_seconds"`
	MaxStatusErrors       int      `toml:"max_status_errors"`
	Command               string   `toml:"command"`
	Args                  []string `toml:"args"`
	ImagePath             string   `toml:"image_path"`
	CommandTimeoutSeconds int      `toml:"command_timeout_seconds"`
}

// Artifacts contains storage settings for per-run audio and video blobs.
type Artifacts struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	TTLHours      int    `toml:"ttl_hours"`
	SweepSchedule string `toml:"sweep_schedule"`
	NATSURL       string `toml:"nats_url"`
	NATSBucket    string `toml:"nats_bucket"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunCompleted   bool   `toml:"run_completed"`
	RunFailed      bool   `toml:"run_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Server: HTTP bind address and public base URL
//   - Paths: data and log directories
//   - Script: chat model used to write scripts
//   - Voice: text-to-speech provider
//   - Render: avatar video provider and polling bounds
//   - Artifacts: per-run blob storage and TTL
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Server        Server        `toml:"server"`
	Paths         Paths         `toml:"paths"`
	Script        Script        `toml:"script"`
	Voice         Voice         `toml:"voice"`
	Render        Render        `toml:"render"`
	Artifacts     Artifacts     `toml:"artifacts"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Validation failures carry services.ErrConfiguration.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env from the working directory. Variables already present
// in the environment win.
func loadDotEnv() error {
	info, err := os.Stat(dotEnvFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", dotEnvFile, err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(dotEnvFile); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "dotenv", dotEnvFile, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for service operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Artifacts.Backend == ArtifactBackendFS {
		dirs = append(dirs, c.Artifacts.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the run history database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "runs.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reelforged.lock")
}

// PollInterval returns the fixed render status polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Render.PollIntervalSeconds) * time.Second
}

// PollCeiling returns the maximum time spent waiting on a render job.
func (c *Config) PollCeiling() time.Duration {
	return time.Duration(c.Render.MaxWaitSeconds) * time.Second
}

// RequestBudget returns the longest a full pipeline run may take when every
// stage uses its configured timeout. Local renders are bounded by the command
// timeout, hosted renders by the submit call plus the poll ceiling.
func (c *Config) RequestBudget() time.Duration {
	attempts := max(c.Script.RetryAttempts, 1)
	budget := time.Duration(c.Script.TimeoutSeconds*attempts)*time.Second +
		time.Duration(c.Voice.TimeoutSeconds)*time.Second
	if c.Render.Provider == RenderProviderLocal {
		return budget + time.Duration(c.Render.CommandTimeoutSeconds)*time.Second
	}
	return budget + time.Duration(c.Render.TimeoutSeconds)*time.Second + c.PollCeiling()
}

// ArtifactTTL returns how long run artifacts are retained.
func (c *Config) ArtifactTTL() time.Duration {
	return time.Duration(c.Artifacts.TTLHours) * time.Hour
}

// ArtifactURL builds the externally reachable URL for an artifact path such as
// "/artifacts/{run}/voice.mp3". Without a public base URL the path is returned.
func (c *Config) ArtifactURL(path string) string {
	base := strings.TrimRight(c.Server.PublicBaseURL, "/")
	if base == "" {
		return path
	}
	return base + path
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML with secrets masked.
func (c *Config) Encode() (string, error) {
	masked := *c
	masked.Script.APIKey = maskSecret(masked.Script.APIKey)
	masked.Voice.APIKey = maskSecret(masked.Voice.APIKey)
	masked.Render.APIKey = maskSecret(masked.Render.APIKey)
	data, err := toml.Marshal(masked)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", 6) + value[len(value)-2:]
}
