package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler(t *testing.T) {
	t.Parallel()

	t.Run("runs a task repeatedly until the context ends", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		var calls atomic.Int32
		s := NewScheduler(WithSchedulerLogger(discardLogger()))
		s.Every("count", 5*time.Millisecond, func(context.Context) error {
			calls.Add(1)
			return nil
		})

		if err := s.Run(ctx); err != nil {
			t.Fatalf("expected nil on cancellation, got %v", err)
		}
		if calls.Load() < 2 {
			t.Errorf("expected at least 2 runs, got %d", calls.Load())
		}
	})

	t.Run("drops ticks while the task is active", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		var calls atomic.Int32
		s := NewScheduler(WithSchedulerLogger(discardLogger()))
		s.Every("slow", 5*time.Millisecond, func(ctx context.Context) error {
			calls.Add(1)
			<-ctx.Done()
			return nil
		})

		if err := s.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("expected exactly one run, got %d", calls.Load())
		}
		if s.Dropped() == 0 {
			t.Error("expected dropped ticks")
		}
	})

	t.Run("never runs two tasks at once", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		var active, maxActive atomic.Int32
		task := func(context.Context) error {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(3 * time.Millisecond)
			active.Add(-1)
			return nil
		}
		s := NewScheduler(WithSchedulerLogger(discardLogger()))
		s.Every("a", 2*time.Millisecond, task)
		s.Every("b", 2*time.Millisecond, task)

		if err := s.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxActive.Load() != 1 {
			t.Errorf("expected at most one active task, got %d", maxActive.Load())
		}
		if s.Runs() == 0 {
			t.Error("expected some runs")
		}
	})

	t.Run("keeps going after task errors", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		s := NewScheduler(WithSchedulerLogger(discardLogger()))
		s.Every("failing", 5*time.Millisecond, func(context.Context) error {
			return errors.New("page crashed")
		})

		if err := s.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Runs() < 2 {
			t.Errorf("expected at least 2 runs, got %d", s.Runs())
		}
	})

	t.Run("refuses to run without tasks", func(t *testing.T) {
		t.Parallel()

		if err := NewScheduler().Run(context.Background()); !errors.Is(err, ErrNoTasks) {
			t.Errorf("expected ErrNoTasks, got %v", err)
		}
	})
}
