package heygen

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

	"reelforge/internal/render"
	"reelforge/internal/services"
)

const (
	defaultBaseURL     = "https://api.heygen.com"
	defaultHTTPTimeout = 30 * time.Second
	defaultWidth       = 720
	defaultHeight      = 1280
	maxErrorBody       = 4 << 10
)

// Config captures HeyGen avatar rendering settings.
type Config struct {
	APIKey         string
	BaseURL        string
	AvatarID       string
	LookID         string
	AvatarStyle    string
	Width          int
	Height         int
	TimeoutSeconds int
}

// Client submits avatar video jobs and reports their status.
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

// NewClient constructs a HeyGen client.
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
	cfg.AvatarID = strings.TrimSpace(cfg.AvatarID)
	cfg.LookID = strings.TrimSpace(cfg.LookID)
	if cfg.AvatarStyle == "" {
		cfg.AvatarStyle = "normal"
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name identifies the renderer in logs and health output.
func (c *Client) Name() string { return "heygen" }

type character struct {
	Type           string `json:"type"`
	AvatarID       string `json:"avatar_id,omitempty"`
	AvatarStyle    string `json:"avatar_style,omitempty"`
	TalkingPhotoID string `json:"talking_photo_id,omitempty"`
}

type voice struct {
	Type     string `json:"type"`
	AudioURL string `json:"audio_url"`
}

type videoInput struct {
	Character character `json:"character"`
	Voice     voice     `json:"voice"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   dimension    `json:"dimension"`
	Title       string       `json:"title,omitempty"`
}

type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func (e *apiError) String() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if len(parts) == 0 && e.Code != nil {
		parts = append(parts, fmt.Sprint(e.Code))
	}
	return strings.Join(parts, ": ")
}

type generateResponse struct {
	Error *apiError `json:"error"`
	Data  struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

type statusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID       string    `json:"id"`
		Status   string    `json:"status"`
		VideoURL string    `json:"video_url"`
		Error    *apiError `json:"error"`
	} `json:"data"`
}

// Submit starts an avatar render driven by the audio at req.AudioURL.
func (c *Client) Submit(ctx context.Context, req render.Request) (render.Job, error) {
	if c.cfg.APIKey == "" {
		return render.Job{}, services.Wrap(services.ErrConfiguration, "render", "submit", "api key required", nil)
	}
	if strings.TrimSpace(req.AudioURL) == "" {
		return render.Job{}, services.Wrap(services.ErrValidation, "render", "submit", "audio url required", nil)
	}

	char := character{Type: "avatar", AvatarID: c.cfg.AvatarID, AvatarStyle: c.cfg.AvatarStyle}
	if c.cfg.LookID != "" {
		char = character{Type: "talking_photo", TalkingPhotoID: c.cfg.LookID}
	}
	payload := generateRequest{
		VideoInputs: []videoInput{{
			Character: char,
			Voice:     voice{Type: "audio", AudioURL: req.AudioURL},
		}},
		Dimension: dimension{Width: c.cfg.Width, Height: c.cfg.Height},
		Title:     req.RunID,
	}

	body, status, err := c.do(ctx, http.MethodPost, "/v2/video/generate", nil, payload)
	if err != nil {
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "submit", "http error", err)
	}
	var parsed generateResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if status < 200 || status >= 300 {
		detail := fmt.Sprintf("http %d: %s", status, summarize(body, parsed.Error))
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "submit", detail, nil)
	}
	if decodeErr != nil {
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "submit", "decode response", decodeErr)
	}
	if parsed.Error != nil && parsed.Error.String() != "" {
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "submit", parsed.Error.String(), nil)
	}
	if strings.TrimSpace(parsed.Data.VideoID) == "" {
		return render.Job{}, services.Wrap(services.ErrExternalTool, "render", "submit", "response missing video_id", nil)
	}
	return render.Job{ID: parsed.Data.VideoID, State: render.StatePending}, nil
}

// Status fetches the current state of a job. The upstream payload is
// preserved verbatim in Status.Raw.
func (c *Client) Status(ctx context.Context, jobID string) (render.Status, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return render.Status{}, services.Wrap(services.ErrValidation, "render", "status", "video id required", nil)
	}
	if c.cfg.APIKey == "" {
		return render.Status{}, services.Wrap(services.ErrConfiguration, "render", "status", "api key required", nil)
	}
	query := url.Values{"video_id": []string{jobID}}
	body, status, err := c.do(ctx, http.MethodGet, "/v1/video_status.get", query, nil)
	if err != nil {
		return render.Status{}, services.Wrap(services.ErrExternalTool, "render", "status", "http error", err)
	}
	if status == http.StatusNotFound {
		return render.Status{}, services.Wrap(services.ErrNotFound, "render", "status", jobID, nil)
	}
	if status < 200 || status >= 300 {
		detail := fmt.Sprintf("http %d: %s", status, summarize(body, nil))
		return render.Status{}, services.Wrap(services.ErrExternalTool, "render", "status", detail, nil)
	}
	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return render.Status{}, services.Wrap(services.ErrExternalTool, "render", "status", "decode response", err)
	}

	result := render.Status{
		State:    render.ParseState(parsed.Data.Status),
		VideoURL: parsed.Data.VideoURL,
		Raw:      json.RawMessage(body),
	}
	switch result.State {
	case render.StateFailed:
		result.Detail = parsed.Data.Error.String()
		if result.Detail == "" {
			result.Detail = fmt.Sprintf("upstream status %q", parsed.Data.Status)
		}
	case render.StateCompleted:
		if result.VideoURL == "" {
			result.State = render.StateFailed
			result.Detail = "completed without video_url"
		}
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, int, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, 0, fmt.Errorf("build url: %w", err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func summarize(body []byte, parsed *apiError) string {
	if msg := parsed.String(); msg != "" {
		return msg
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
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
