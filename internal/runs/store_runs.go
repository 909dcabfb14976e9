package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reelforge/internal/services"
)

// ErrNotFound is returned when a run ID has no history row.
var ErrNotFound = fmt.Errorf("%w: run", services.ErrNotFound)

// DefaultListLimit bounds List when callers pass a non-positive limit.
const DefaultListLimit = 50

// Create inserts a new run. Missing timestamps and status are filled in.
func (s *Store) Create(ctx context.Context, run *Run) error {
	if run == nil {
		return services.Wrap(services.ErrValidation, "runs", "create", "run is nil", nil)
	}
	if strings.TrimSpace(run.ID) == "" {
		return services.Wrap(services.ErrValidation, "runs", "create", "run id is required", nil)
	}
	now := s.now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = StatusPending
	}
	if run.Mode == "" {
		run.Mode = "full"
	}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Theme,
		run.Mode,
		string(run.Status),
		nullableString(run.FailedStage),
		nullableString(run.ErrorMessage),
		nullableString(run.Script),
		nullableString(run.Narration),
		nullableString(run.AudioRef),
		nullableString(run.VideoRef),
		nullableString(run.JobID),
		nullableString(run.Renderer),
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Update persists every mutable field of run and refreshes UpdatedAt.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if run == nil {
		return services.Wrap(services.ErrValidation, "runs", "update", "run is nil", nil)
	}
	run.UpdatedAt = s.now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, failed_stage = ?, error_message = ?, script = ?, narration = ?,
            audio_ref = ?, video_ref = ?, job_id = ?, renderer = ?, updated_at = ?
        WHERE id = ?`,
		string(run.Status),
		nullableString(run.FailedStage),
		nullableString(run.ErrorMessage),
		nullableString(run.Script),
		nullableString(run.Narration),
		nullableString(run.AudioRef),
		nullableString(run.VideoRef),
		nullableString(run.JobID),
		nullableString(run.Renderer),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// Get fetches a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// FindByJobID returns the most recent run that submitted the given render job.
func (s *Store) FindByJobID(ctx context.Context, jobID string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs WHERE job_id = ? ORDER BY created_at DESC LIMIT 1`, jobID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w for job %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("find run by job %s: %w", jobID, err)
	}
	return run, nil
}

// List returns the most recent runs first, optionally filtered by status.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
