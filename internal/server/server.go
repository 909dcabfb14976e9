package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/api"
	"reelforge/internal/artifacts"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/render"
	"reelforge/internal/services"
)

const (
	defaultWriteTimeout = 30 * time.Second
	shutdownTimeout     = 5 * time.Second
	// writeMargin keeps /generate writable after the slowest stage returns.
	writeMargin = 30 * time.Second
)

// Pipeline is the orchestrator surface the HTTP handlers drive.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
	JobStatus(ctx context.Context, jobID string) (render.Status, error)
	Health(ctx context.Context) []pipeline.StageHealth
	RendererName() string
}

// Server exposes the pipeline over HTTP.
type Server struct {
	bind      string
	logger    *slog.Logger
	pipeline  Pipeline
	artifacts *artifacts.Store
	runs      *api.RunService
	status    func(context.Context) api.StatusResponse

	listener net.Listener
	server   *http.Server
}

// New builds the HTTP server. history may be nil, in which case the /runs
// routes answer with an empty list.
func New(cfg *config.Config, p Pipeline, store *artifacts.Store, history api.RunReader, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "server", "init", "config is required", nil)
	}
	if p == nil || store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "server", "init", "pipeline and artifact store are required", nil)
	}
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "server", "init", "server.bind is empty", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &Server{
		bind:      bind,
		logger:    logging.NewComponentLogger(logger, "http-server"),
		pipeline:  p,
		artifacts: store,
		runs:      api.NewRunService(history),
	}

	writeTimeout := defaultWriteTimeout
	if budget := cfg.RequestBudget() + writeMargin; budget > writeTimeout {
		writeTimeout = budget
	}
	srv.server = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler returns the routed handler wrapped with request tracking.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/test", s.handleTest)
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/video", s.handleVideo)
	mux.HandleFunc("/video/status", s.handleVideoStatus)
	mux.HandleFunc("/voice.mp3", s.handleVoice)
	mux.HandleFunc("/artifacts/{run}/{name}", s.handleArtifact)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/{id}", s.handleRun)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return s.withRequestID(mux)
}

// SetStatusSource installs the callback behind /status. Without one the
// route answers 503.
func (s *Server) SetStatusSource(fn func(context.Context) api.StatusResponse) {
	s.status = fn
}

// Start listens on the configured address and serves until ctx is done or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening",
		logging.String("address", listener.Addr().String()),
		logging.Duration("write_timeout", s.server.WriteTimeout),
	)
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{OK: false, Error: message})
}

func (s *Server) writeFailure(w http.ResponseWriter, res pipeline.Result) {
	s.writeJSON(w, statusFor(res.Err), api.FromFailure(res))
}

// statusFor maps a run error onto an HTTP status. Unclassified stage failures
// are upstream failures.
func statusFor(err error) int {
	status := services.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		if _, ok := pipeline.AsStageError(err); ok {
			return http.StatusBadGateway
		}
	}
	return status
}
