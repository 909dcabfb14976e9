package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"reelforge/internal/logging"
)

// Sweeper evicts expired runs on a cron schedule.
type Sweeper struct {
	store    *Store
	cron     *cron.Cron
	schedule string
	logger   *slog.Logger
}

// NewSweeper registers store.Sweep on schedule (standard cron or a
// descriptor such as "@every 10m").
func NewSweeper(store *Store, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Sweeper{
		store:    store,
		cron:     cron.New(),
		schedule: schedule,
		logger:   logging.NewComponentLogger(logger, "artifact-sweeper"),
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("artifact sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("artifact sweeper started",
		logging.String("schedule", s.schedule),
		logging.Duration("ttl", s.store.TTL()),
	)
}

// Stop halts the schedule and waits for a running sweep up to ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce sweeps immediately.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.store.Sweep(ctx, time.Now()); err != nil {
		logging.WarnWithContext(s.logger, "artifact sweep incomplete", "artifact_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check artifact backend availability"),
			logging.String(logging.FieldImpact, "expired artifacts remain until the next sweep"),
		)
	}
}
