package pipeline

import (
	"context"
	"strings"
	"time"
)

const healthCheckTimeout = 10 * time.Second

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health reports readiness of each stage's provider and the artifact store.
// Providers with a HealthCheck method are probed; the rest count as ready
// once configured.
func (o *Orchestrator) Health(ctx context.Context) []StageHealth {
	stages := []StageHealth{
		probe(ctx, string(StageScript), o.script),
		probe(ctx, string(StageVoice), o.voice),
		probe(ctx, string(StageRender), o.renderer),
	}
	if err := o.artifacts.Ping(); err != nil {
		stages = append(stages, UnhealthyStage("artifacts", strings.TrimSpace(err.Error())))
	} else {
		stages = append(stages, HealthyStage("artifacts"))
	}
	return stages
}

func probe(ctx context.Context, name string, provider any) StageHealth {
	if provider == nil {
		return UnhealthyStage(name, "not configured")
	}
	checker, ok := provider.(healthChecker)
	if !ok {
		return HealthyStage(name)
	}
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := checker.HealthCheck(checkCtx); err != nil {
		return UnhealthyStage(name, strings.TrimSpace(err.Error()))
	}
	return HealthyStage(name)
}
