package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelforge/internal/api"
	"reelforge/internal/artifacts"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/runs"
	"reelforge/internal/server"
)

const stopTimeout = 5 * time.Second

// Daemon serves the pipeline over HTTP, sweeps expired artifacts, and
// enforces single-instance execution.
type Daemon struct {
	logger    *slog.Logger
	store     *runs.Store
	pipeline  *pipeline.Orchestrator
	artifacts *artifacts.Store
	server    *server.Server
	sweeper   *artifacts.Sweeper

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	Address         string
	RunDBPath       string
	LockFilePath    string
	Renderer        string
	ArtifactBackend string
	Runs            runs.Summary
	Stages          []pipeline.StageHealth
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runs.Store, orch *pipeline.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil || logger == nil {
		return nil, errors.New("daemon requires config, run store, pipeline, and logger")
	}

	srv, err := server.New(cfg, orch, orch.Artifacts(), store, logger)
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}
	sweeper, err := artifacts.NewSweeper(orch.Artifacts(), cfg.Artifacts.SweepSchedule, logger)
	if err != nil {
		return nil, err
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		pipeline:  orch,
		artifacts: orch.Artifacts(),
		server:    srv,
		sweeper:   sweeper,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	srv.SetStatusSource(func(ctx context.Context) api.StatusResponse {
		return d.Status(ctx).Response()
	})
	return d, nil
}

// Start acquires the daemon lock, starts the artifact sweeper and begins
// serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelforge daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.sweeper.Start()
	if err := d.server.Start(d.ctx); err != nil {
		d.stopSweeper()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start http server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("reelforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()),
		logging.String("renderer", d.pipeline.RendererName()),
		logging.String("artifact_backend", d.artifacts.Backend()),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.stopSweeper()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reelforge daemon stopped")
}

func (d *Daemon) stopSweeper() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	d.sweeper.Stop(ctx)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.artifacts != nil {
		if err := d.artifacts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close artifacts: %w", err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the address the HTTP server is bound to.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Status returns the current daemon status. Run counts are best effort.
func (d *Daemon) Status(ctx context.Context) Status {
	summary, err := d.store.Summarize(ctx)
	if err != nil {
		d.logger.Warn("run summary unavailable", logging.Error(err))
	}
	return Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		Address:         d.server.Addr(),
		RunDBPath:       d.store.Path(),
		LockFilePath:    d.lockPath,
		Renderer:        d.pipeline.RendererName(),
		ArtifactBackend: d.artifacts.Backend(),
		Runs:            summary,
		Stages:          d.pipeline.Health(ctx),
	}
}

// Response converts the status to its /status payload.
func (s Status) Response() api.StatusResponse {
	return api.StatusResponse{
		Running:         s.Running,
		PID:             s.PID,
		Address:         s.Address,
		RunDBPath:       s.RunDBPath,
		LockFilePath:    s.LockFilePath,
		Renderer:        s.Renderer,
		ArtifactBackend: s.ArtifactBackend,
		Runs:            api.FromRunSummary(s.Runs),
		Stages:          api.StageHealthSlice(s.Stages),
	}
}
