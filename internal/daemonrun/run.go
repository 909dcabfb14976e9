package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/deps"
	"reelforge/internal/logging"
	"reelforge/internal/logs"
	"reelforge/internal/notifications"
	"reelforge/internal/providers"
	"reelforge/internal/runs"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the reelforge daemon and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelforge-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logs.PointerName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "reelforge-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "reelforge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := runs.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer store.Close()
	markInterrupted(signalCtx, logger, store)

	blobs, err := providers.ArtifactStore(cfg, logger)
	if err != nil {
		logger.Error("open artifact store", logging.Error(err))
		return err
	}
	if n, err := blobs.Rebuild(signalCtx); err != nil {
		logging.WarnWithContext(logger, "artifact index rebuild failed", "artifact_rebuild_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check artifact backend availability"),
			logging.String(logging.FieldImpact, "artifacts from earlier runs are not served until they expire"),
		)
	} else if n > 0 {
		logger.Info("artifact index rebuilt", logging.Int("runs", n))
	}

	notifier := notifications.NewService(cfg)
	orch, err := providers.Orchestrator(cfg, blobs, store, notifier, logger)
	if err != nil {
		_ = blobs.Close()
		return fmt.Errorf("wire pipeline: %w", err)
	}

	d, err := daemon.New(cfg, store, orch, logger)
	if err != nil {
		_ = blobs.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check server.bind and that no other instance holds the data dir lock"),
			logging.String(logging.FieldImpact, "no requests are served"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelforge daemon shutting down")
	return nil
}

// markInterrupted fails runs a previous process left mid-flight.
func markInterrupted(ctx context.Context, logger *slog.Logger, store *runs.Store) {
	n, err := store.MarkInterrupted(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "unable to close interrupted runs", "run_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect runs.db with `reelforge runs list`"),
			logging.String(logging.FieldImpact, "stale runs stay in an active status"),
		)
		return
	}
	if n > 0 {
		logger.Info("interrupted runs marked failed",
			logging.String(logging.FieldEventType, "runs_interrupted"),
			logging.Int64("count", n),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("script_provider", cfg.Script.Provider),
		logging.Bool("script_key_present", strings.TrimSpace(cfg.Script.APIKey) != ""),
		logging.Bool("voice_key_present", strings.TrimSpace(cfg.Voice.APIKey) != ""),
		logging.String("render_provider", cfg.Render.Provider),
		logging.String("artifact_backend", cfg.Artifacts.Backend),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	if cfg.Render.Provider == config.RenderProviderLocal {
		attrs = append(attrs,
			logging.String("render_command", cfg.Render.Command),
			logging.Bool("render_command_available", len(deps.MissingRequired(deps.CheckRender(cfg))) == 0),
		)
	} else {
		attrs = append(attrs, logging.Bool("render_key_present", strings.TrimSpace(cfg.Render.APIKey) != ""))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
