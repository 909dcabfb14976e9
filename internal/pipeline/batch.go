package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/textutil"
)

const (
	// DefaultBatchWorkers bounds concurrent runs in a batch.
	DefaultBatchWorkers = 2
	// DefaultDedupeThreshold is the cosine similarity above which two themes
	// count as the same idea.
	DefaultDedupeThreshold = 0.8
)

var errRunAborted = errors.New("run aborted by worker panic")

// BatchOptions controls Batch.
type BatchOptions struct {
	Workers int
	Mode    Mode
	// DedupeThreshold drops near-duplicate themes; zero uses the default and
	// a value above one disables deduplication.
	DedupeThreshold float64
}

// BatchReport summarizes a batch run. Results follow the order of the kept
// themes.
type BatchReport struct {
	Results   []Result
	Skipped   []string
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Batch runs several themes concurrently on a bounded worker pool. Themes
// that repeat an earlier one are skipped.
func (o *Orchestrator) Batch(ctx context.Context, themes []string, opts BatchOptions) (BatchReport, error) {
	started := time.Now()
	cleaned := make([]string, 0, len(themes))
	for _, theme := range themes {
		if theme = strings.TrimSpace(theme); theme != "" {
			cleaned = append(cleaned, theme)
		}
	}
	if len(cleaned) == 0 {
		return BatchReport{}, services.Wrap(services.ErrValidation, "pipeline", "batch", "no themes provided", nil)
	}

	threshold := opts.DedupeThreshold
	if threshold <= 0 {
		threshold = DefaultDedupeThreshold
	}
	kept, dropped := textutil.DedupeThemes(cleaned, threshold)

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	logger := logging.WithContext(ctx, o.logger)
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		logging.ErrorWithContext(logger, "batch worker panicked", "batch_panic",
			logging.String("panic", fmt.Sprint(p)),
		)
	}))
	if err != nil {
		return BatchReport{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("themes", len(kept)),
		logging.Int("skipped", len(dropped)),
		logging.Int("workers", workers),
	)

	results := make([]Result, len(kept))
	var wg sync.WaitGroup
	for i, theme := range kept {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = o.Run(ctx, Request{Theme: theme, Mode: opts.Mode})
		}); err != nil {
			wg.Done()
			results[i] = Result{Theme: theme, Mode: opts.Mode, Err: fmt.Errorf("submit batch run: %w", err)}
		}
	}
	wg.Wait()

	report := BatchReport{Results: results, Skipped: dropped}
	for i := range report.Results {
		result := &report.Results[i]
		if !result.OK && result.Err == nil {
			result.Theme = kept[i]
			result.Err = errRunAborted
		}
		if result.OK {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(started)

	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Duration("duration", report.Duration),
	)
	if err := o.notifier.NotifyBatchCompleted(context.WithoutCancel(ctx), report.Succeeded, report.Failed, report.Duration); err != nil {
		logger.Debug("batch notification failed", logging.Error(err))
	}
	return report, nil
}
