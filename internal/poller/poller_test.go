package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"reelforge/internal/services"
)

func TestTaskCompletesOnFirstCheck(t *testing.T) {
	task := Start(context.Background(), Options{Interval: time.Hour, Timeout: time.Minute}, func(context.Context) (string, bool, error) {
		return "ready", true, nil
	})
	value, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if value != "ready" || task.Attempts() != 1 {
		t.Fatalf("unexpected value %q after %d attempts", value, task.Attempts())
	}
}

func TestTaskPollsUntilDone(t *testing.T) {
	var calls atomic.Int32
	task := Start(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: time.Second}, func(context.Context) (int, bool, error) {
		n := calls.Add(1)
		return int(n), n == 3, nil
	})
	value, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if value != 3 {
		t.Fatalf("expected third check to finish, got %d", value)
	}
}

func TestTaskAlwaysPendingTimesOutNearCeiling(t *testing.T) {
	const ceiling = 150 * time.Millisecond
	started := time.Now()
	task := Start(context.Background(), Options{Interval: 10 * time.Millisecond, Timeout: ceiling}, func(context.Context) (struct{}, bool, error) {
		return struct{}{}, false, nil
	})
	_, err := task.Wait(context.Background())
	elapsed := time.Since(started)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected services.ErrTimeout marker, got %v", err)
	}
	if elapsed < ceiling-20*time.Millisecond || elapsed > ceiling+500*time.Millisecond {
		t.Fatalf("expected to stop near %s, took %s", ceiling, elapsed)
	}
}

func TestTaskHungCheckRespectsCeiling(t *testing.T) {
	task := Start(context.Background(), Options{Interval: time.Millisecond, Timeout: 50 * time.Millisecond}, func(ctx context.Context) (int, bool, error) {
		<-ctx.Done()
		return 0, false, ctx.Err()
	})
	if _, err := task.Wait(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTaskStopsWhenParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := Start(ctx, Options{Interval: 5 * time.Millisecond, Timeout: time.Minute}, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})
	time.AfterFunc(20*time.Millisecond, cancel)

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not stop after parent cancellation")
	}
	if _, err := task.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTaskCancel(t *testing.T) {
	task := Start(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: time.Minute}, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})
	task.Cancel()
	if _, err := task.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTaskToleratesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	var tolerated []int
	task := Start(context.Background(), Options{
		Interval:  time.Millisecond,
		Timeout:   time.Second,
		MaxErrors: 2,
		OnError:   func(_ error, n int) { tolerated = append(tolerated, n) },
	}, func(context.Context) (string, bool, error) {
		switch calls.Add(1) {
		case 1, 2:
			return "", false, errors.New("502")
		case 3:
			return "", false, nil
		case 4:
			return "", false, errors.New("502 again")
		default:
			return "done", true, nil
		}
	})
	value, err := task.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if value != "done" {
		t.Fatalf("unexpected value %q", value)
	}
	if len(tolerated) != 3 || tolerated[2] != 1 {
		t.Fatalf("expected counter reset after success, got %v", tolerated)
	}
}

func TestTaskFailsAfterErrorBudget(t *testing.T) {
	boom := errors.New("status unavailable")
	task := Start(context.Background(), Options{Interval: time.Millisecond, Timeout: time.Second, MaxErrors: 1}, func(context.Context) (int, bool, error) {
		return 0, false, boom
	})
	_, err := task.Wait(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped check error, got %v", err)
	}
	if task.Attempts() != 2 {
		t.Fatalf("expected two attempts, got %d", task.Attempts())
	}
}

func TestTaskPermanentErrorStopsImmediately(t *testing.T) {
	boom := errors.New("job failed")
	task := Start(context.Background(), Options{Interval: time.Millisecond, Timeout: time.Second, MaxErrors: 5}, func(context.Context) (int, bool, error) {
		return 0, false, Permanent(boom)
	})
	if _, err := task.Wait(context.Background()); err != boom {
		t.Fatalf("expected unwrapped permanent error, got %v", err)
	}
	if task.Attempts() != 1 {
		t.Fatalf("expected one attempt, got %d", task.Attempts())
	}
}

func TestWaitAbandonDoesNotStopTask(t *testing.T) {
	release := make(chan struct{})
	task := Start(context.Background(), Options{Interval: time.Millisecond, Timeout: time.Second}, func(context.Context) (int, bool, error) {
		select {
		case <-release:
			return 1, true, nil
		default:
			return 0, false, nil
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wait to observe its own context, got %v", err)
	}
	close(release)
	if value, err := task.Wait(context.Background()); err != nil || value != 1 {
		t.Fatalf("expected task to finish independently, got %d %v", value, err)
	}
}
