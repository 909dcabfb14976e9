package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"reelforge/internal/services"
)

const (
	defaultModel       = goopenai.GPT4oMini
	defaultHTTPTimeout = 60 * time.Second
	scriptTemperature  = 0.9
)

// Config captures the settings needed to request scripts from OpenAI.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Prompt         string
	SystemPrompt   string
	TimeoutSeconds int
}

// Client writes short video scripts through the OpenAI chat completion API.
type Client struct {
	cfg Config
	api *goopenai.Client
}

// Option customizes the client.
type Option func(*goopenai.ClientConfig)

// WithHTTPClient overrides the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *goopenai.ClientConfig) {
		if client != nil {
			cfg.HTTPClient = client
		}
	}
}

// NewClient constructs a script client for the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cfg.Prompt = strings.TrimSpace(cfg.Prompt)
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	sdkConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}
	sdkConfig.HTTPClient = &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(&sdkConfig)
	}
	return &Client{cfg: cfg, api: goopenai.NewClientWithConfig(sdkConfig)}
}

// GenerateScript asks the model for a short spoken script about theme.
func (c *Client) GenerateScript(ctx context.Context, theme string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "script", "openai", "api key required", nil)
	}
	prompt := services.ScriptPrompt(c.cfg.Prompt, theme)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "script", "openai", "prompt required", nil)
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: c.cfg.SystemPrompt})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: scriptTemperature,
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "script", "openai", describeAPIError(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "script", "openai", "empty choices", nil)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		detail := fmt.Sprintf("empty content (finish_reason=%q, refusal=%q)", resp.Choices[0].FinishReason, resp.Choices[0].Message.Refusal)
		return "", services.Wrap(services.ErrExternalTool, "script", "openai", detail, nil)
	}
	return content, nil
}

// HealthCheck verifies the API key can see the configured model.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "script", "openai health", "api key required", nil)
	}
	if _, err := c.api.GetModel(ctx, c.cfg.Model); err != nil {
		return services.Wrap(services.ErrExternalTool, "script", "openai health", describeAPIError(err), err)
	}
	return nil
}

func describeAPIError(err error) string {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("http %d", apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("http %d", reqErr.HTTPStatusCode)
	}
	return "request failed"
}
