package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sys/unix"

	"reelforge/internal/config"
	"reelforge/internal/deps"
	"reelforge/internal/providers"
)

const (
	scriptCheckTimeout = 30 * time.Second
	natsCheckTimeout   = 5 * time.Second
)

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckScript verifies that the script provider is reachable and the key is
// valid. It makes a single attempt.
func CheckScript(ctx context.Context, cfg *config.Config) Result {
	name := "Script provider (" + cfg.Script.Provider + ")"
	if strings.TrimSpace(cfg.Script.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCfg := *cfg
	checkCfg.Script.RetryAttempts = 1
	provider, err := providers.Script(&checkCfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checker, ok := provider.(healthChecker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "no health probe available"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, scriptCheckTimeout)
	defer cancel()
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckAPIKey verifies that a provider key is configured.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "missing"}
	}
	return Result{Name: name, Passed: true, Detail: "present"}
}

// CheckNATS verifies that the NATS server backing the artifact store accepts
// connections and has JetStream enabled.
func CheckNATS(ctx context.Context, url string) Result {
	const name = "NATS"

	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	conn, err := nats.Connect(url, nats.Name("reelforge-preflight"), nats.Timeout(natsCheckTimeout))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", url, err)}
	}
	defer conn.Close()

	js, err := conn.JetStream()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: jetstream: %v)", url, err)}
	}
	checkCtx, cancel := context.WithTimeout(ctx, natsCheckTimeout)
	defer cancel()
	if _, err := js.AccountInfo(nats.Context(checkCtx)); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: jetstream unavailable: %v)", url, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (jetstream ok)", url)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRenderBinaries converts render dependency statuses into results.
// Optional binaries pass with an explanatory detail when missing.
func CheckRenderBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckRender(cfg)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Detail = status.Detail + " (optional)"
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// summarizeAPIError produces a human-readable summary for provider health check failures.
func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
