package preflight

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"reelforge/internal/config"
)

// DaemonProbe reports whether a daemon currently holds the data dir lock.
type DaemonProbe struct {
	Running  bool
	PID      int
	LockPath string
}

// ProbeDaemon tries the daemon lock without blocking. A lock that can be
// taken is released immediately and means no daemon is running.
func ProbeDaemon(cfg *config.Config) DaemonProbe {
	if cfg == nil {
		return DaemonProbe{}
	}
	probe := DaemonProbe{LockPath: cfg.LockPath()}
	if _, err := os.Stat(probe.LockPath); err != nil {
		return probe
	}
	lock := flock.New(probe.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return probe
	}
	if locked {
		_ = lock.Unlock()
		return probe
	}
	probe.Running = true
	probe.PID = readPID(filepath.Join(cfg.Paths.LogDir, "reelforge.pid"))
	return probe
}

// Detail renders a display-friendly summary for status output.
func (p DaemonProbe) Detail() string {
	if !p.Running {
		return "not running"
	}
	if p.PID > 0 {
		return "running (pid " + strconv.Itoa(p.PID) + ")"
	}
	return "running"
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
