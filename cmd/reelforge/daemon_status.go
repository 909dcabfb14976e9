package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"reelforge/internal/api"
	"reelforge/internal/config"
	"reelforge/internal/runs"
)

const daemonStatusTimeout = 2 * time.Second

// daemonStatusURL points at /status on the loopback side of server.bind.
func daemonStatusURL(cfg *config.Config) (string, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(cfg.Server.Bind))
	if err != nil {
		return "", fmt.Errorf("parse server.bind: %w", err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/status", nil
}

func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (api.StatusResponse, error) {
	url, err := daemonStatusURL(cfg)
	if err != nil {
		return api.StatusResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, daemonStatusTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return api.StatusResponse{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return api.StatusResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return api.StatusResponse{}, fmt.Errorf("daemon status: %s", resp.Status)
	}
	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return api.StatusResponse{}, fmt.Errorf("decode daemon status: %w", err)
	}
	return status, nil
}

func formatRunSummary(summary api.RunSummary) string {
	return fmt.Sprintf("%d total (%d active, %d submitted, %d completed, %d failed)",
		summary.Total, summary.Active, summary.Submitted, summary.Completed, summary.Failed)
}

func (c *commandContext) runSummary(ctx context.Context) (api.RunSummary, error) {
	var summary runs.Summary
	err := c.withHistory(func(store *runs.Store) error {
		var err error
		summary, err = store.Summarize(ctx)
		return err
	})
	return api.FromRunSummary(summary), err
}
