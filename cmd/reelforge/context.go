package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelforge/internal/artifacts"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/notifications"
	"reelforge/internal/pipeline"
	"reelforge/internal/providers"
	"reelforge/internal/runs"
)

type commandContext struct {
	configFlag *string

	configOnce  sync.Once
	config      *config.Config
	configPath  string
	configFound bool
	configErr   error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configFound = exists
	})
	return c.config, c.configErr
}

// engine is an in-process pipeline for one-shot commands (generate, batch).
type engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	history   *runs.Store
	artifacts *artifacts.Store
	pipeline  *pipeline.Orchestrator
}

func (c *commandContext) openEngine(ctx context.Context) (*engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	history, err := runs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	blobs, err := providers.ArtifactStore(cfg, logger)
	if err != nil {
		_ = history.Close()
		return nil, err
	}
	if _, err := blobs.Rebuild(ctx); err != nil {
		logger.Warn("artifact index rebuild failed", logging.Error(err))
	}
	orch, err := providers.Orchestrator(cfg, blobs, history, notifications.NewService(cfg), logger)
	if err != nil {
		_ = blobs.Close()
		_ = history.Close()
		return nil, err
	}
	return &engine{cfg: cfg, logger: logger, history: history, artifacts: blobs, pipeline: orch}, nil
}

func (e *engine) Close() error {
	return errors.Join(e.artifacts.Close(), e.history.Close())
}

func (c *commandContext) withHistory(fn func(*runs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runs.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
