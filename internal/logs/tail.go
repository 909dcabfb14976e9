package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelforge/internal/logging"
)

// PointerName is the symlink in the log directory that points at the current
// daemon log.
const PointerName = "reelforge.log"

const (
	maxLineBytes         = 1024 * 1024
	defaultFollowRefresh = 250 * time.Millisecond
)

// CurrentPath returns the path of the current daemon log pointer.
func CurrentPath(logDir string) string {
	return filepath.Join(logDir, PointerName)
}

// Filter narrows log lines. Zero value matches everything.
type Filter struct {
	RunID    string
	MinLevel string
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Match reports whether line passes the filter. Lines that are not JSON fall
// back to a substring check on the run ID and ignore the level.
func (f Filter) Match(line string) bool {
	if f.RunID == "" && f.MinLevel == "" {
		return true
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return f.RunID == "" || strings.Contains(line, f.RunID)
	}
	if f.RunID != "" {
		if id, _ := entry[logging.FieldRunID].(string); id != f.RunID {
			return false
		}
	}
	if f.MinLevel != "" {
		level, _ := entry["level"].(string)
		floor, ok := levelRank[strings.ToUpper(f.MinLevel)]
		if ok && levelRank[strings.ToUpper(level)] < floor {
			return false
		}
	}
	return true
}

// TailOptions controls Tail. A negative Offset reads the last Limit lines;
// otherwise reading starts at Offset. With Follow set, Tail waits up to Wait
// for new lines when none are available yet.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Filter Filter
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields an empty result.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var result TailResult
	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit, opts.Filter)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		result, err = readFrom(path, offset, opts.Filter)
	}
	if err != nil || len(result.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return result, err
	}
	return waitForLines(ctx, path, result.Offset, opts.Wait, opts.Filter)
}

// Follow emits lines appended to path after offset until ctx ends. It
// returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, filter Filter, emit func(string)) error {
	ticker := time.NewTicker(defaultFollowRefresh)
	defer ticker.Stop()
	for {
		result, err := readFrom(path, offset, filter)
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			emit(line)
		}
		offset = result.Offset
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readLast(path string, limit int, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var window []string
	err = scanLines(file, filter, func(line string) {
		if limit <= 0 {
			return
		}
		if len(window) == limit {
			window = window[1:]
		}
		window = append(window, line)
	})
	if err != nil {
		return TailResult{}, err
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}
	return TailResult{Lines: window, Offset: offset}, nil
}

func readFrom(path string, offset int64, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	// Rotated or truncated since the last read.
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	if err := scanLines(file, filter, func(line string) { lines = append(lines, line) }); err != nil {
		return TailResult{Offset: offset}, err
	}
	next, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("determine log offset: %w", err)
	}
	return TailResult{Lines: lines, Offset: next}, nil
}

func scanLines(r io.Reader, filter Filter, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if line := scanner.Text(); filter.Match(line) {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	return nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, filter Filter) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(defaultFollowRefresh)
	defer ticker.Stop()

	for {
		result, err := readFrom(path, offset, filter)
		if err != nil || len(result.Lines) > 0 {
			return result, err
		}
		offset = result.Offset
		if time.Now().After(deadline) {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}
}
