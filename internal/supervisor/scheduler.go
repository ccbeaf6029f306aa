package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrNoTasks is returned by Run when no task was registered.
var ErrNoTasks = errors.New("scheduler has no tasks")

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	task     Task
	busy     atomic.Bool
}

// Scheduler runs repeating tasks one at a time.
type Scheduler struct {
	logger *slog.Logger
	jobs   chan *entry

	mu      sync.Mutex
	entries []*entry

	runs    atomic.Uint64
	dropped atomic.Uint64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates an empty Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		jobs:   make(chan *entry, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every registers task to run each interval once Run is called.
// The first run happens one interval after Run starts.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{name: name, interval: interval, task: task})
}

// Runs returns how many task runs have completed.
func (s *Scheduler) Runs() uint64 {
	return s.runs.Load()
}

// Dropped returns how many ticks were dropped because their task was busy.
func (s *Scheduler) Dropped() uint64 {
	return s.dropped.Load()
}

// Run executes tasks until ctx is done and returns nil then.
// Task errors are logged and do not stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	if len(entries) == 0 {
		return ErrNoTasks
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			s.tick(ctx, e)
			return nil
		})
	}
	g.Go(func() error {
		s.work(ctx)
		return nil
	})
	return g.Wait()
}

// tick enqueues e every interval while e is idle.
func (s *Scheduler) tick(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.busy.CompareAndSwap(false, true) {
				s.dropped.Add(1)
				s.logger.Debug("tick dropped, task still active", "task", e.name)
				continue
			}
			select {
			case s.jobs <- e:
			default:
				e.busy.Store(false)
				s.dropped.Add(1)
				s.logger.Debug("tick dropped, worker busy", "task", e.name)
			}
		}
	}
}

// work is the single worker.
func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.jobs:
			if err := e.task(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("task failed", "task", e.name, "error", err)
			}
			s.runs.Add(1)
			e.busy.Store(false)
		}
	}
}
