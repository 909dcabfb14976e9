package api

import (
	"context"

	"reelforge/internal/runs"
)

// RunReader abstracts history persistence interactions needed for API queries.
type RunReader interface {
	List(ctx context.Context, limit int, statuses ...runs.Status) ([]*runs.Run, error)
	Stats(ctx context.Context) (map[runs.Status]int, error)
	Get(ctx context.Context, id string) (*runs.Run, error)
}

// RunService exposes read-only history operations returning API DTOs.
type RunService struct {
	store RunReader
}

// NewRunService constructs a RunService around the provided reader.
func NewRunService(store RunReader) *RunService {
	if store == nil {
		return nil
	}
	return &RunService{store: store}
}

// List returns recent runs filtered by status.
func (s *RunService) List(ctx context.Context, limit int, statuses ...runs.Status) ([]Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	list, err := s.store.List(ctx, limit, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRuns(list), nil
}

// Stats returns run counts keyed by status string.
func (s *RunService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeRunStats(stats), nil
}

// Describe fetches a single run.
func (s *RunService) Describe(ctx context.Context, id string) (*Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	run, err := s.store.Get(ctx, id)
	if err != nil || run == nil {
		return nil, err
	}
	dto := FromRun(run)
	return &dto, nil
}
