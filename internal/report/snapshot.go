package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/model"
)

// DefaultCaptureTimeout bounds a snapshot or an error report.
const DefaultCaptureTimeout = 30 * time.Second

// Snapshotter records the page at flow checkpoints as "<checkpoint>.png".
// Snapshots are observational: failures are logged and never returned.
type Snapshotter struct {
	store   *artifact.Store
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
	ipEchoURL string
}

// Option configures a Snapshotter or an ErrorReporter.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTimeout bounds each capture.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithIPEchoURL sets the page named in the proxy check hint of error reports.
func WithIPEchoURL(url string) Option {
	return func(o *options) {
		o.ipEchoURL = url
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		timeout: DefaultCaptureTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSnapshotter creates a Snapshotter writing into store.
func NewSnapshotter(store *artifact.Store, opts ...Option) *Snapshotter {
	o := newOptions(opts)
	return &Snapshotter{
		store:   store,
		logger:  o.logger,
		timeout: o.timeout,
		now:     o.now,
	}
}

// Capture takes a screenshot and reads the DOM of the current page.
func (s *Snapshotter) Capture(ctx context.Context, sess *browser.Session, checkpoint model.Checkpoint) model.StatusSnapshot {
	snap := model.StatusSnapshot{Checkpoint: checkpoint, CapturedAt: s.now()}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var errs []error
	d := sess.Driver()

	shot, err := d.Screenshot(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	} else {
		snap.Screenshot = shot
		path, err := s.store.Write(string(checkpoint)+".png", shot)
		if err != nil {
			errs = append(errs, err)
		} else {
			snap.Files = append(snap.Files, path)
		}
	}

	html, err := d.HTML(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("dom: %w", err))
	} else {
		snap.DOM = html
		text, err := DOMText(html)
		if err != nil {
			errs = append(errs, fmt.Errorf("dom text: %w", err))
		}
		snap.DOMText = text
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("snapshot incomplete", "checkpoint", checkpoint, "error", err)
	}
	s.logger.Debug("snapshot taken",
		"checkpoint", checkpoint,
		"files", snap.Files,
		"text", truncateString(snap.DOMText, 200))
	return snap
}
