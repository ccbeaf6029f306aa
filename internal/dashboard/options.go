package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/model"
)

// DefaultWaitTimeout bounds each UI wait.
const DefaultWaitTimeout = 30 * time.Second

// Snapshotter records the page at a checkpoint.
type Snapshotter interface {
	Capture(ctx context.Context, s *browser.Session, checkpoint model.Checkpoint) model.StatusSnapshot
}

type nopSnapshotter struct{}

func (nopSnapshotter) Capture(_ context.Context, _ *browser.Session, checkpoint model.Checkpoint) model.StatusSnapshot {
	return model.StatusSnapshot{Checkpoint: checkpoint, CapturedAt: time.Now()}
}

// Option configures the flows.
type Option func(*options)

type options struct {
	timeout   time.Duration
	snapshots Snapshotter
	logger    *slog.Logger
}

// WithWaitTimeout sets the bound of each UI wait.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSnapshotter records checkpoint snapshots with s.
func WithSnapshotter(s Snapshotter) Option {
	return func(o *options) {
		o.snapshots = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		timeout:   DefaultWaitTimeout,
		snapshots: nopSnapshotter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
