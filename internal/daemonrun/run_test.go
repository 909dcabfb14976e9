package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"reelforge/internal/logging"
	"reelforge/internal/logs"
	"reelforge/internal/runs"
	"reelforge/internal/testsupport"
)

func TestRunStartsAndStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "json"

	store := testsupport.MustOpenStore(t, cfg)
	stale := testsupport.NewRun(t, store, "freins", runs.StatusVoicing)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{LogLevel: "debug"})
	}()

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelforge.pid")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("pid file never appeared")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// MarkInterrupted runs right after the pid file is written.
	deadline = time.Now().Add(5 * time.Second)
	for {
		got, err := store.Get(context.Background(), stale.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status == runs.StatusFailed {
			if got.FailedStage != "voice" {
				t.Fatalf("failed stage = %q, want voice", got.FailedStage)
			}
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("interrupted run still %s", got.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err = %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, logs.PointerName)); err != nil {
		t.Fatalf("expected log pointer: %v", err)
	}
}

func TestEnsureCurrentLogPointerReplaces(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "reelforge-1.log")
	second := filepath.Join(dir, "reelforge-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logs.PointerName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "reelforge-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelforge.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}
}

func TestMarkInterruptedLeavesTerminalRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	done := testsupport.NewRun(t, store, "freins", runs.StatusCompleted)
	active := testsupport.NewRun(t, store, "pneus", runs.StatusPolling)

	markInterrupted(context.Background(), logging.NewNop(), store)

	got, err := store.Get(context.Background(), done.ID)
	if err != nil || got.Status != runs.StatusCompleted {
		t.Fatalf("completed run changed: %+v, %v", got, err)
	}
	got, err = store.Get(context.Background(), active.ID)
	if err != nil || got.Status != runs.StatusFailed || got.FailedStage != "render" {
		t.Fatalf("active run not failed: %+v, %v", got, err)
	}
}
