package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/services"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	payload := map[string]any{"choices": []any{choice}}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestClientGenerateScript(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "reelforge" {
			t.Errorf("unexpected title header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(t, w, map[string]any{
			"message": map[string]any{"content": "  Saviez-vous que les pneus respirent ?  "},
		})
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:       "test",
		BaseURL:      server.URL,
		Model:        "demo-model",
		Prompt:       "Write about {theme}.",
		SystemPrompt: "Be brief.",
		Title:        "reelforge",
	})
	script, err := client.GenerateScript(context.Background(), "tyres")
	if err != nil {
		t.Fatalf("GenerateScript returned error: %v", err)
	}
	if script != "Saviez-vous que les pneus respirent ?" {
		t.Fatalf("unexpected script %q", script)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %+v", captured.Messages)
	}
	if captured.Messages[0].Role != "system" || captured.Messages[1].Content != "Write about tyres." {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if captured.Temperature != scriptTemperature || captured.MaxTokens != 0 {
		t.Fatalf("unexpected sampling settings %+v", captured)
	}
}

func TestClientGenerateScriptMissingKey(t *testing.T) {
	client := NewClient(Config{Model: "demo", Prompt: "{theme}"})
	_, err := client.GenerateScript(context.Background(), "cars")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientGenerateScriptHTTPFailureIsExternal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Prompt: "{theme}"})
	_, err := client.GenerateScript(context.Background(), "cars")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt by default, got %d", calls.Load())
	}
	var statusErr *statusError
	if !errors.As(err, &statusErr) || statusErr.code != http.StatusInternalServerError {
		t.Fatalf("expected wrapped http status error, got %v", err)
	}
}

func TestClientGenerateScriptEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": ""},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Prompt: "{theme}"})
	_, err := client.GenerateScript(context.Background(), "cars")
	if err == nil {
		t.Fatal("expected empty content to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), `finish_reason="stop"`) {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientGenerateScriptDeltaAndLegacyText(t *testing.T) {
	choices := []map[string]any{
		{"delta": map[string]any{"content": "from delta"}},
		{"finish_reason": "stop", "text": "from text"},
	}
	want := []string{"from delta", "from text"}
	for i, choice := range choices {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeCompletion(t, w, choice)
		}))
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Prompt: "{theme}"})
		got, err := client.GenerateScript(context.Background(), "cars")
		server.Close()
		if err != nil {
			t.Fatalf("case %d: GenerateScript returned error: %v", i, err)
		}
		if got != want[i] {
			t.Fatalf("case %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.MaxTokens != healthMaxTokens {
			t.Errorf("expected capped health request, got %+v", req)
		}
		// A truncated reply still proves the key and model work.
		writeCompletion(t, w, map[string]any{"finish_reason": "length", "message": map[string]any{"content": ""}})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestClientRetriesOnHTTP429WhenEnabled(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		writeCompletion(t, w, map[string]any{"message": map[string]any{"content": "script"}})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Prompt: "{theme}", RetryAttempts: 3},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
	)
	script, err := client.GenerateScript(context.Background(), "cars")
	if err != nil {
		t.Fatalf("GenerateScript returned error: %v", err)
	}
	if script != "script" || calls != 2 {
		t.Fatalf("expected success on second call, got %q after %d calls", script, calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Prompt: "{theme}", RetryAttempts: 5},
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.GenerateScript(context.Background(), "cars"); err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected no retry on 400, got %d calls", calls)
	}
}

func TestClientRetriesEmptyReplyThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeCompletion(t, w, map[string]any{"message": map[string]any{"content": "  "}})
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo", Prompt: "{theme}", RetryAttempts: 3},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(time.Second, 10*time.Second),
	)
	_, err := client.GenerateScript(context.Background(), "cars")
	if err == nil || !strings.Contains(err.Error(), "gave up after 3 attempts") {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", slept)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	p := retryPolicy{attempts: 10, base: time.Second, max: 5 * time.Second}
	if got := p.backoff(1); got != time.Second {
		t.Fatalf("backoff(1) = %v", got)
	}
	if got := p.backoff(6); got != 5*time.Second {
		t.Fatalf("backoff(6) = %v", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("expected 3s, got %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("expected negative value to be rejected")
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Fatal("expected empty value to be rejected")
	}
}
