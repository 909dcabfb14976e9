package heygen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelforge/internal/render"
	"reelforge/internal/services"
)

func TestSubmit(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/video/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "hg-key" {
			t.Errorf("unexpected api key %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"error":null,"data":{"video_id":"vid-42"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "hg-key", BaseURL: server.URL, AvatarID: "avatar-1"})
	job, err := client.Submit(context.Background(), render.Request{RunID: "run-1", AudioURL: "https://example.test/artifacts/run-1/voice.mp3"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if job.ID != "vid-42" || job.State != render.StatePending {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(captured.VideoInputs) != 1 {
		t.Fatalf("expected one video input, got %+v", captured)
	}
	input := captured.VideoInputs[0]
	if input.Character.AvatarID != "avatar-1" || input.Character.Type != "avatar" {
		t.Fatalf("unexpected character %+v", input.Character)
	}
	if input.Voice.Type != "audio" || !strings.HasSuffix(input.Voice.AudioURL, "/run-1/voice.mp3") {
		t.Fatalf("unexpected voice %+v", input.Voice)
	}
	if captured.Dimension.Width != 720 || captured.Dimension.Height != 1280 {
		t.Fatalf("expected portrait dimension, got %+v", captured.Dimension)
	}
}

func TestSubmitUsesLookID(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"data":{"video_id":"vid"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, AvatarID: "a", LookID: "look-9"})
	if _, err := client.Submit(context.Background(), render.Request{AudioURL: "https://x/a.mp3"}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	char := captured.VideoInputs[0].Character
	if char.Type != "talking_photo" || char.TalkingPhotoID != "look-9" || char.AvatarID != "" {
		t.Fatalf("unexpected character %+v", char)
	}
}

func TestSubmitFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401","message":"Unauthorized"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, AvatarID: "a"})
	_, err := client.Submit(context.Background(), render.Request{AudioURL: "https://x/a.mp3"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external error, got %v", err)
	}
	if !strings.Contains(err.Error(), "http 401: Unauthorized") {
		t.Fatalf("expected summarized error, got %v", err)
	}
}

func TestSubmitRequiresAudioURL(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if _, err := client.Submit(context.Background(), render.Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		body      string
		wantState render.State
		wantURL   string
		wantInfo  string
	}{
		{`{"code":100,"data":{"status":"processing"}}`, render.StatePending, "", ""},
		{`{"code":100,"data":{"status":"waiting"}}`, render.StatePending, "", ""},
		{`{"code":100,"data":{"status":"completed","video_url":"https://cdn/v.mp4"}}`, render.StateCompleted, "https://cdn/v.mp4", ""},
		{`{"code":100,"data":{"status":"failed","error":{"code":40119,"message":"avatar not found"}}}`, render.StateFailed, "", "avatar not found"},
		{`{"code":100,"data":{"status":"mystery"}}`, render.StateFailed, "", `upstream status "mystery"`},
		{`{"code":100,"data":{"status":"completed"}}`, render.StateFailed, "", "completed without video_url"},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/video_status.get" || r.URL.Query().Get("video_id") != "vid-1" {
				t.Errorf("unexpected request %s", r.URL.String())
			}
			_, _ = w.Write([]byte(tc.body))
		}))
		client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
		status, err := client.Status(context.Background(), "vid-1")
		server.Close()
		if err != nil {
			t.Fatalf("Status(%s) returned error: %v", tc.body, err)
		}
		if status.State != tc.wantState || status.VideoURL != tc.wantURL {
			t.Fatalf("Status(%s) = %+v", tc.body, status)
		}
		if tc.wantInfo != "" && !strings.Contains(status.Detail, tc.wantInfo) {
			t.Fatalf("Status(%s) detail %q, want %q", tc.body, status.Detail, tc.wantInfo)
		}
		if string(status.Raw) != tc.body {
			t.Fatalf("expected raw payload preserved, got %s", status.Raw)
		}
	}
}

func TestStatusUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := client.Status(context.Background(), "vid"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external error, got %v", err)
	}
}
