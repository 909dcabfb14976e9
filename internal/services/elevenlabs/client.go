package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelforge/internal/services"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 4 << 10
)

// Config captures text-to-speech settings.
type Config struct {
	APIKey          string
	BaseURL         string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	TimeoutSeconds  int
}

// Client synthesizes narration through the ElevenLabs text-to-speech API.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a voice client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.VoiceID = strings.TrimSpace(cfg.VoiceID)
	cfg.ModelID = strings.TrimSpace(cfg.ModelID)
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize converts text to MPEG audio. Transport failures, non-2xx
// responses and empty bodies are tagged with services.ErrExternalTool.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "voice", "synthesize", "text required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "voice", "synthesize", "api key required", nil)
	}
	if c.cfg.VoiceID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "voice", "synthesize", "voice id required", nil)
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "v1", "text-to-speech", c.cfg.VoiceID)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "voice", "build url", c.cfg.BaseURL, err)
	}
	encoded, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("voice request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("voice request: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "voice", "synthesize", "http error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := fmt.Sprintf("http %d: %s", resp.StatusCode, summarizeError(body))
		return nil, services.Wrap(services.ErrExternalTool, "voice", "synthesize", detail, nil)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "voice", "read audio", "", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "voice", "synthesize", "empty audio body", nil)
	}
	return audio, nil
}

// summarizeError prefers the API's detail.message field and falls back to
// a trimmed copy of the raw body.
func summarizeError(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail.Message != "" {
			if detail.Status != "" {
				return detail.Status + ": " + detail.Message
			}
			return detail.Message
		}
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil && text != "" {
			return text
		}
	}
	trimmed := strings.Join(strings.Fields(string(body)), " ")
	if trimmed == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(trimmed); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return trimmed
}
