package runs

import (
	"context"
	"fmt"
)

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Summarize aggregates run counts for diagnostic output.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusSubmitted:
			summary.Submitted += count
		default:
			summary.Active += count
		}
	}
	return summary, nil
}

// MarkInterrupted fails runs left in a non-terminal state, typically by a
// previous process that exited mid-run. The failed stage is derived from the
// status the run was stuck in.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	args := []any{
		string(StatusFailed),
		string(StatusScripting), "script",
		string(StatusVoicing), "voice",
		string(StatusRendering), "render",
		string(StatusPolling), "render",
		DaemonStopReason,
		formatTime(s.now().UTC()),
	}
	for _, status := range activeStatuses {
		args = append(args, string(status))
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?,
            failed_stage = CASE status WHEN ? THEN ? WHEN ? THEN ? WHEN ? THEN ? WHEN ? THEN ? ELSE failed_stage END,
            error_message = ?, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(activeStatuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}
