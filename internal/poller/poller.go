package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelforge/internal/services"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 180 * time.Second
)

// ErrTimeout reports that the poll ceiling was reached before the check
// finished. It carries services.ErrTimeout for status mapping.
var ErrTimeout = fmt.Errorf("%w: poll ceiling reached", services.ErrTimeout)

// CheckFunc observes the polled resource once. It returns done=true with the
// final value when polling should stop.
type CheckFunc[T any] func(ctx context.Context) (value T, done bool, err error)

// Options bounds a polling task.
type Options struct {
	// Interval is the fixed delay between checks.
	Interval time.Duration
	// Timeout is the ceiling measured from Start.
	Timeout time.Duration
	// MaxErrors is how many consecutive check errors are tolerated. The next
	// one ends the task.
	MaxErrors int
	// OnError is called for each tolerated check error.
	OnError func(err error, consecutive int)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxErrors < 0 {
		o.MaxErrors = 0
	}
	return o
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a check error as terminal regardless of MaxErrors.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Task is a running poll. Its result becomes available once Done is closed.
type Task[T any] struct {
	done     chan struct{}
	cancel   context.CancelFunc
	value    T
	err      error
	attempts int
	started  time.Time
	finished time.Time
}

// Start launches check immediately and then on every interval until it
// reports done, fails terminally, ctx is cancelled, Cancel is called, or the
// timeout elapses.
func Start[T any](ctx context.Context, opts Options, check CheckFunc[T]) *Task[T] {
	opts = opts.withDefaults()
	runCtx, cancel := context.WithCancel(ctx)
	task := &Task[T]{
		done:    make(chan struct{}),
		cancel:  cancel,
		started: time.Now(),
	}
	go task.run(runCtx, opts, check)
	return task
}

// Done is closed when the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel stops polling. Wait then returns context.Canceled.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx is done. Abandoning a wait does
// not stop the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Attempts returns how many checks ran. Only meaningful after Done.
func (t *Task[T]) Attempts() int {
	select {
	case <-t.done:
		return t.attempts
	default:
		return 0
	}
}

// Elapsed returns the wall time between Start and completion.
func (t *Task[T]) Elapsed() time.Duration {
	select {
	case <-t.done:
		return t.finished.Sub(t.started)
	default:
		return time.Since(t.started)
	}
}

func (t *Task[T]) run(ctx context.Context, opts Options, check CheckFunc[T]) {
	defer func() {
		t.finished = time.Now()
		t.cancel()
		close(t.done)
	}()

	checkCtx, stop := context.WithDeadline(ctx, t.started.Add(opts.Timeout))
	defer stop()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	failures := 0
	for {
		t.attempts++
		value, done, err := check(checkCtx)
		switch {
		case err != nil:
			if checkCtx.Err() != nil {
				t.err = stopReason(ctx)
				return
			}
			var perm permanentError
			if errors.As(err, &perm) {
				t.err = perm.err
				return
			}
			failures++
			if failures > opts.MaxErrors {
				t.err = fmt.Errorf("poll check failed %d consecutive times: %w", failures, err)
				return
			}
			if opts.OnError != nil {
				opts.OnError(err, failures)
			}
		case done:
			t.value = value
			return
		default:
			failures = 0
		}

		select {
		case <-checkCtx.Done():
			t.err = stopReason(ctx)
			return
		case <-ticker.C:
		}
	}
}

func stopReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrTimeout
}
