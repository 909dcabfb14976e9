package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"reelforge/internal/api"
	"reelforge/internal/artifacts"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/runs"
	"reelforge/internal/services"
)

const testMessage = "Orchestrator API is running perfectly ! Aucun souci d'authentification."

func (s *Server) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, api.TestResponse{OK: true, Message: testMessage})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	res := s.pipeline.Run(r.Context(), pipeline.Request{
		Theme: r.URL.Query().Get("theme"),
		Mode:  pipeline.ModeFull,
	})
	if !res.OK {
		s.writeFailure(w, res)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromGenerateResult(res))
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	query := r.URL.Query()
	res := s.pipeline.Run(r.Context(), pipeline.Request{
		Theme:      query.Get("theme"),
		Mode:       pipeline.ModeSubmit,
		ReuseRunID: strings.TrimSpace(query.Get("run")),
	})
	if !res.OK {
		s.writeFailure(w, res)
		return
	}
	status := http.StatusOK
	if res.Pending {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, api.FromVideoResult(res))
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id manquant")
		return
	}
	status, err := s.pipeline.JobStatus(r.Context(), id)
	if err != nil {
		code := services.HTTPStatus(err)
		if code == http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "video status lookup failed", "video_status_failed",
			logging.String("job_id", id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the render provider credentials and job id"),
			logging.String(logging.FieldImpact, "client receives an error status"),
		)
		s.writeError(w, code, err.Error())
		return
	}
	if len(status.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(status.Raw)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJobStatus(id, status))
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	latest, ok := s.artifacts.Latest(artifacts.NameAudio)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no audio generated yet")
		return
	}
	s.serveArtifact(w, r, latest.RunID, latest.Name)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	s.serveArtifact(w, r, r.PathValue("run"), r.PathValue("name"))
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, runID, name string) {
	artifact, data, err := s.artifacts.Get(r.Context(), runID, name)
	if err != nil {
		status := services.HTTPStatus(err)
		if status == http.StatusNotFound || status == http.StatusBadRequest {
			s.writeError(w, status, "artifact not found")
			return
		}
		s.writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	if s.runs == nil {
		s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: []api.Run{}})
		return
	}
	query := r.URL.Query()
	limit := runs.DefaultListLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	var statuses []runs.Status
	for _, value := range query["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := runs.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+trimmed)
			return
		}
		statuses = append(statuses, status)
	}

	list, err := s.runs.List(r.Context(), limit, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []api.Run{}
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: list})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	if s.runs == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	run, err := s.runs.Describe(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunResponse{Run: *run})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	stages := s.pipeline.Health(r.Context())
	payload := api.HealthResponse{
		OK:       pipeline.AllReady(stages),
		Renderer: s.pipeline.RendererName(),
		Backend:  s.artifacts.Backend(),
		Stages:   api.StageHealthSlice(stages),
	}
	status := http.StatusOK
	if !payload.OK {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allowGet(w, r) {
		return
	}
	if s.status == nil {
		s.writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}
