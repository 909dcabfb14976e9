package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelforge/internal/config"
)

// Requirement defines an external binary a render setup relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// RenderRequirements lists the binaries the configured renderer executes.
// Hosted renderers need none.
func RenderRequirements(cfg *config.Config) []Requirement {
	if cfg == nil || cfg.Render.Provider != config.RenderProviderLocal {
		return nil
	}
	return []Requirement{
		{
			Name:        "Render command",
			Command:     cfg.Render.Command,
			Description: "Turns the narration audio and avatar image into a video",
		},
	}
}

// CheckRender evaluates RenderRequirements and, for local rendering, the
// FFmpeg binary most talking-head tools shell out to.
func CheckRender(cfg *config.Config) []Status {
	requirements := RenderRequirements(cfg)
	if len(requirements) == 0 {
		return nil
	}
	results := CheckBinaries(requirements)
	return append(results, ResolveFFmpeg(cfg.Render.Command))
}

// MissingRequired returns the unavailable, non-optional entries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
