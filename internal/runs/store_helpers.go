package runs

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, theme, mode, status, failed_stage, error_message, script, narration, audio_ref, video_ref, job_id, renderer, created_at, updated_at"

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id           string
		theme        string
		mode         string
		statusStr    string
		failedStage  sql.NullString
		errorMessage sql.NullString
		script       sql.NullString
		narration    sql.NullString
		audioRef     sql.NullString
		videoRef     sql.NullString
		jobID        sql.NullString
		renderer     sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&theme,
		&mode,
		&statusStr,
		&failedStage,
		&errorMessage,
		&script,
		&narration,
		&audioRef,
		&videoRef,
		&jobID,
		&renderer,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		Theme:        theme,
		Mode:         mode,
		Status:       Status(statusStr),
		FailedStage:  failedStage.String,
		ErrorMessage: errorMessage.String,
		Script:       script.String,
		Narration:    narration.String,
		AudioRef:     audioRef.String,
		VideoRef:     videoRef.String,
		JobID:        jobID.String,
		Renderer:     renderer.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		run.UpdatedAt = updated
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
