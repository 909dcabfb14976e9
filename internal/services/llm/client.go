package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/services"
)

const (
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	scriptTemperature  = 0.9
	healthMaxTokens    = 5
	maxResponseBytes   = 4 << 20
)

// Config captures the settings of the chat gateway.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Prompt         string
	SystemPrompt   string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
}

// Client talks to an OpenAI-compatible chat completions endpoint. BaseURL is
// the full endpoint URL, not a prefix.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = base
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the timer used between retries.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.retry.sleep = sleep
	}
}

// NewClient constructs a client. Blank fields fall back to the OpenRouter
// endpoint and a single attempt per request.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Prompt = strings.TrimSpace(cfg.Prompt)
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      newRetryPolicy(cfg.RetryAttempts),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// GenerateScript asks the model for a short spoken script about theme.
// Failures are tagged with services.ErrExternalTool, or
// services.ErrConfiguration when the client has no API key.
func (c *Client) GenerateScript(ctx context.Context, theme string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "script", "chat completion", "api key required", nil)
	}
	prompt := services.ScriptPrompt(c.cfg.Prompt, theme)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "script", "chat completion", "prompt required", nil)
	}

	req := chatRequest{Model: c.cfg.Model, Temperature: scriptTemperature}
	if c.cfg.SystemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: c.cfg.SystemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	script, err := c.complete(ctx, req)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "script", "chat completion", "", err)
	}
	return script, nil
}

// HealthCheck sends a tiny completion to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "script", "health", "api key required", nil)
	}
	req := chatRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Reply with OK."}},
		MaxTokens: healthMaxTokens,
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "script", "health", "", err)
	}
	if len(resp.Choices) == 0 {
		return services.Wrap(services.ErrExternalTool, "script", "health", "reply has no choices", nil)
	}
	return nil
}

// complete sends req, retrying per the client's policy, and returns the
// first non-empty reply.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	for attempt := 1; ; attempt++ {
		reply, err := c.completeOnce(ctx, req)
		if err == nil {
			return reply, nil
		}
		delay, again := c.retry.next(ctx, err, attempt)
		if !again {
			if attempt > 1 {
				return "", fmt.Errorf("gave up after %d attempts: %w", attempt, err)
			}
			return "", err
		}
		if err := c.retry.wait(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) completeOnce(ctx context.Context, req chatRequest) (string, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	reply, finish, refusal := resp.reply()
	if reply == "" {
		return "", &emptyReplyError{choices: len(resp.Choices), finishReason: finish, refusal: refusal, snippet: resp.raw}
	}
	return reply, nil
}

// send performs one request and decodes the response envelope.
func (c *Client) send(ctx context.Context, payload chatRequest) (chatResponse, error) {
	var parsed chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return parsed, fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return parsed, fmt.Errorf("new chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return parsed, fmt.Errorf("chat request (timeout %s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return parsed, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return parsed, newStatusError(resp, body)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return parsed, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return parsed, fmt.Errorf("chat api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	parsed.raw = snippet(body)
	return parsed, nil
}
