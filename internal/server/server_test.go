package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"reelforge/internal/api"
	"reelforge/internal/artifacts"
	"reelforge/internal/config"
	"reelforge/internal/pipeline"
	"reelforge/internal/render"
	"reelforge/internal/runs"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

type fakePipeline struct {
	mu       sync.Mutex
	result   pipeline.Result
	requests []pipeline.Request
	contexts []context.Context
	status   render.Status
	jobErr   error
	health   []pipeline.StageHealth
}

func (f *fakePipeline) Run(ctx context.Context, req pipeline.Request) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.contexts = append(f.contexts, ctx)
	return f.result
}

func (f *fakePipeline) JobStatus(_ context.Context, jobID string) (render.Status, error) {
	if jobID == "" {
		return render.Status{}, services.Wrap(services.ErrValidation, "render", "status", "job id is required", nil)
	}
	return f.status, f.jobErr
}

func (f *fakePipeline) Health(context.Context) []pipeline.StageHealth {
	return f.health
}

func (f *fakePipeline) RendererName() string { return "fake" }

func (f *fakePipeline) lastRequest(t *testing.T) pipeline.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("pipeline was not invoked")
	}
	return f.requests[len(f.requests)-1]
}

type harness struct {
	cfg       *config.Config
	pipe      *fakePipeline
	artifacts *artifacts.Store
	history   *runs.Store
	server    *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	backend, err := artifacts.NewFSBackend(cfg.Artifacts.Dir)
	if err != nil {
		t.Fatalf("fs backend: %v", err)
	}
	store := artifacts.NewStore(backend, time.Hour)
	history := testsupport.MustOpenStore(t, cfg)
	pipe := &fakePipeline{}
	srv, err := New(cfg, pipe, store, history, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{cfg: cfg, pipe: pipe, artifacts: store, history: history, server: srv}
}

func (h *harness) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestTestRoute(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodGet, "/test")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[api.TestResponse](t, w)
	if !resp.OK || resp.Message == "" {
		t.Fatalf("unexpected payload %+v", resp)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, http.MethodPost, "/generate")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if len(h.pipe.requests) != 0 {
		t.Fatal("pipeline must not run for rejected methods")
	}
}

func TestGenerateSuccess(t *testing.T) {
	h := newHarness(t)
	h.pipe.result = pipeline.Result{
		OK:        true,
		RunID:     "run-1",
		Script:    "**Secret:** brakes",
		Narration: "Secret: brakes",
		AudioRef:  "http://127.0.0.1:10000/artifacts/run-1/voice.mp3",
		VideoRef:  "https://cdn.example/v.mp4",
	}
	w := h.do(t, http.MethodGet, "/generate?theme=freins")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[map[string]any](t, w)
	for _, key := range []string{"ok", "run_id", "script", "narration", "audio", "video"} {
		if _, ok := resp[key]; !ok {
			t.Fatalf("missing %q in %v", key, resp)
		}
	}
	req := h.pipe.lastRequest(t)
	if req.Theme != "freins" || req.Mode != pipeline.ModeFull {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, ok := services.RequestIDFromContext(h.pipe.contexts[0]); !ok {
		t.Fatal("expected request id on the pipeline context")
	}
}

func TestGenerateFailureStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		result pipeline.Result
		status int
		stage  string
	}{
		{
			name: "script upstream",
			result: pipeline.Result{Stage: pipeline.StageScript, Err: &pipeline.StageError{
				Stage: pipeline.StageScript,
				Err:   services.Wrap(services.ErrExternalTool, "script", "generate", "upstream 500", nil),
			}},
			status: http.StatusBadGateway,
			stage:  "script",
		},
		{
			name: "render timeout",
			result: pipeline.Result{Stage: pipeline.StageRender, Err: &pipeline.StageError{
				Stage: pipeline.StageRender,
				Phase: pipeline.PhasePoll,
				Err:   services.Wrap(services.ErrTimeout, "render", "poll", "ceiling reached", nil),
			}},
			status: http.StatusGatewayTimeout,
			stage:  "render",
		},
		{
			name: "voice unclassified",
			result: pipeline.Result{Stage: pipeline.StageVoice, Err: &pipeline.StageError{
				Stage: pipeline.StageVoice,
				Err:   errors.New("connection reset"),
			}},
			status: http.StatusBadGateway,
			stage:  "voice",
		},
		{
			name: "configuration",
			result: pipeline.Result{Stage: pipeline.StageVoice, Err: &pipeline.StageError{
				Stage: pipeline.StageVoice,
				Err:   services.Wrap(services.ErrConfiguration, "voice", "init", "api key missing", nil),
			}},
			status: http.StatusServiceUnavailable,
			stage:  "voice",
		},
		{
			name:   "reuse validation",
			result: pipeline.Result{Err: services.Wrap(services.ErrValidation, "pipeline", "reuse", "bad run id", nil)},
			status: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.pipe.result = tc.result
			w := h.do(t, http.MethodGet, "/generate")
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			resp := decode[api.ErrorResponse](t, w)
			if resp.OK || resp.Error == "" || resp.Stage != tc.stage {
				t.Fatalf("unexpected payload %+v", resp)
			}
		})
	}
}

func TestVideoPendingAndCompleted(t *testing.T) {
	h := newHarness(t)
	h.pipe.result = pipeline.Result{OK: true, RunID: "run-1", JobID: "job-42", Pending: true}
	w := h.do(t, http.MethodGet, "/video?theme=pneus")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	pending := decode[api.VideoResponse](t, w)
	if pending.VideoID != "job-42" || pending.Message == "" {
		t.Fatalf("unexpected pending payload %+v", pending)
	}
	if req := h.pipe.lastRequest(t); req.Mode != pipeline.ModeSubmit || req.Theme != "pneus" {
		t.Fatalf("unexpected request %+v", req)
	}

	h.pipe.result = pipeline.Result{OK: true, RunID: "run-2", VideoRef: "https://cdn.example/v.mp4"}
	w = h.do(t, http.MethodGet, "/video?run=3b241101-e2bb-4255-8caf-4136c566a962")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	done := decode[api.VideoResponse](t, w)
	if done.Video == "" {
		t.Fatalf("unexpected payload %+v", done)
	}
	if req := h.pipe.lastRequest(t); req.ReuseRunID != "3b241101-e2bb-4255-8caf-4136c566a962" {
		t.Fatalf("expected reuse run id, got %+v", req)
	}
}

func TestVideoStatus(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/video/status")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if resp := decode[api.ErrorResponse](t, w); resp.Error != "id manquant" || resp.OK {
		t.Fatalf("unexpected payload %+v", resp)
	}

	h.pipe.status = render.Status{State: render.StatePending, Raw: json.RawMessage(`{"data":{"status":"processing"}}`)}
	w = h.do(t, http.MethodGet, "/video/status?id=job-1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != `{"data":{"status":"processing"}}` {
		t.Fatalf("expected raw upstream payload, got %s", got)
	}

	h.pipe.status = render.Status{State: render.StateCompleted, VideoURL: "https://cdn.example/v.mp4"}
	w = h.do(t, http.MethodGet, "/video/status?id=job-1")
	if resp := decode[api.JobStatusResponse](t, w); resp.Status != "completed" || resp.Video == "" {
		t.Fatalf("unexpected fallback payload %+v", resp)
	}

	h.pipe.jobErr = errors.New("upstream exploded")
	w = h.do(t, http.MethodGet, "/video/status?id=job-1")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestVoiceServesLatestAudio(t *testing.T) {
	h := newHarness(t)
	if w := h.do(t, http.MethodGet, "/voice.mp3"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", w.Code)
	}

	ctx := context.Background()
	first := artifacts.NewRunID()
	second := artifacts.NewRunID()
	if _, err := h.artifacts.Put(ctx, first, artifacts.NameAudio, "audio/mpeg", []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := h.artifacts.Put(ctx, second, artifacts.NameAudio, "audio/mpeg", []byte("second")); err != nil {
		t.Fatalf("put: %v", err)
	}

	w := h.do(t, http.MethodGet, "/voice.mp3")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
	if w.Body.String() != "second" {
		t.Fatalf("expected latest audio, got %q", w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/artifacts/"+first+"/voice.mp3")
	if w.Code != http.StatusOK || w.Body.String() != "first" {
		t.Fatalf("per-run artifact = %d %q", w.Code, w.Body.String())
	}
	if w := h.do(t, http.MethodGet, "/artifacts/"+first+"/video.mp4"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing artifact, got %d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/artifacts/not-a-uuid/voice.mp3"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", w.Code)
	}
}

func TestRunsRoutes(t *testing.T) {
	h := newHarness(t)
	completed := testsupport.NewRun(t, h.history, "freins", runs.StatusCompleted)
	testsupport.NewRun(t, h.history, "pneus", runs.StatusFailed)

	w := h.do(t, http.MethodGet, "/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	list := decode[api.RunListResponse](t, w)
	if len(list.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list.Runs))
	}

	w = h.do(t, http.MethodGet, "/runs?status=completed")
	list = decode[api.RunListResponse](t, w)
	if len(list.Runs) != 1 || list.Runs[0].ID != completed.ID {
		t.Fatalf("unexpected filtered list %+v", list.Runs)
	}

	if w := h.do(t, http.MethodGet, "/runs?status=bogus"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/runs?limit=abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	w = h.do(t, http.MethodGet, "/runs/"+completed.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decode[api.RunResponse](t, w); resp.Run.Theme != "freins" {
		t.Fatalf("unexpected run %+v", resp.Run)
	}
	if w := h.do(t, http.MethodGet, "/runs/unknown"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	h.pipe.health = []pipeline.StageHealth{pipeline.HealthyStage("script"), pipeline.HealthyStage("voice")}
	w := h.do(t, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[api.HealthResponse](t, w)
	if !resp.OK || resp.Renderer != "fake" || resp.Backend != "fs" {
		t.Fatalf("unexpected payload %+v", resp)
	}

	h.pipe.health = append(h.pipe.health, pipeline.UnhealthyStage("render", "api key rejected"))
	if w := h.do(t, http.MethodGet, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestStatusRoute(t *testing.T) {
	h := newHarness(t)
	if w := h.do(t, http.MethodGet, "/status"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a status source, got %d", w.Code)
	}

	h.server.SetStatusSource(func(context.Context) api.StatusResponse {
		return api.StatusResponse{
			Running:      true,
			LockFilePath: "/tmp/reelforged.lock",
			Runs:         api.RunSummary{Total: 3, Failed: 1},
		}
	})
	w := h.do(t, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	payload := decode[api.StatusResponse](t, w)
	if !payload.Running || payload.Runs.Total != 3 || payload.Runs.Failed != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestWriteTimeoutCoversRequestBudget(t *testing.T) {
	h := newHarness(t)
	h.cfg.Render.MaxWaitSeconds = 600
	srv, err := New(h.cfg, h.pipe, h.artifacts, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if srv.server.WriteTimeout <= h.cfg.PollCeiling() {
		t.Fatalf("write timeout %s must exceed ceiling %s", srv.server.WriteTimeout, h.cfg.PollCeiling())
	}
	if srv.server.WriteTimeout <= h.cfg.RequestBudget() {
		t.Fatalf("write timeout %s must exceed request budget %s", srv.server.WriteTimeout, h.cfg.RequestBudget())
	}
}

func TestWriteTimeoutCoversLocalRenderCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocalRenderer("fake-render"))
	cfg.Render.MaxWaitSeconds = 1
	cfg.Render.CommandTimeoutSeconds = 600
	cfg.Script.TimeoutSeconds = 60
	cfg.Voice.TimeoutSeconds = 60
	backend, err := artifacts.NewFSBackend(cfg.Artifacts.Dir)
	if err != nil {
		t.Fatalf("fs backend: %v", err)
	}
	srv, err := New(cfg, &fakePipeline{}, artifacts.NewStore(backend, time.Hour), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// script + voice + render command must all fit before the response is cut off
	minimum := 720 * time.Second
	if srv.server.WriteTimeout <= minimum {
		t.Fatalf("write timeout %s must exceed %s for a local render", srv.server.WriteTimeout, minimum)
	}
}

func TestStartServesAndStops(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.server.Stop()

	resp, err := http.Get(fmt.Sprintf("http://%s/test", h.server.Addr()))
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, nil, nil, nil, nil); !services.IsConfigError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
