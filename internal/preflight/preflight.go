package preflight

import (
	"context"

	"reelforge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks for optional components only run when that component is selected.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Data and log directories (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Artifacts.Backend == config.ArtifactBackendFS {
		results = append(results, CheckDirectoryAccess("Artifact directory", cfg.Artifacts.Dir))
	}

	results = append(results, CheckAPIKey("Script API key", cfg.Script.APIKey))
	results = append(results, CheckAPIKey("Voice API key", cfg.Voice.APIKey))
	if cfg.Render.Provider == config.RenderProviderHeyGen {
		results = append(results, CheckAPIKey("Render API key", cfg.Render.APIKey))
	}

	// Script provider (skipped without a key; the key check already failed)
	if cfg.Script.APIKey != "" {
		results = append(results, CheckScript(ctx, cfg))
	}

	if cfg.Render.Provider == config.RenderProviderLocal {
		results = append(results, CheckRenderBinaries(cfg)...)
	}

	if cfg.Artifacts.Backend == config.ArtifactBackendNATS {
		results = append(results, CheckNATS(ctx, cfg.Artifacts.NATSURL))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
