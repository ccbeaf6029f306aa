package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/proxychain"
)

// DefaultProbeInterval is the liveness interval.
const DefaultProbeInterval = 10 * time.Second

// Loop logs that the session is alive until the process is stopped.
type Loop struct {
	session   *browser.Session
	user      string
	interval  time.Duration
	logger    *slog.Logger
	scheduler *Scheduler
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithInterval sets the probe interval.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a Loop supervising s on behalf of user.
func NewLoop(s *browser.Session, user string, opts ...LoopOption) *Loop {
	l := &Loop{
		session:  s,
		user:     user,
		interval: DefaultProbeInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.scheduler = NewScheduler(WithSchedulerLogger(l.logger))
	return l
}

// Run probes the session every interval. It returns nil once ctx is done;
// a failed probe is logged and the loop goes on.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("supervising session", "user", l.user, "interval", l.interval)
	l.scheduler.Every("liveness", l.interval, l.probe)
	return l.scheduler.Run(ctx)
}

// Probes returns how many probes have completed.
func (l *Loop) Probes() uint64 {
	return l.scheduler.Runs()
}

func (l *Loop) probe(ctx context.Context) error {
	title, err := l.session.Driver().Title(ctx)
	if err == nil {
		l.logger.Info("running", "user", l.user, "title", title)
	}

	if p := l.session.Proxy(); p != nil {
		l.logger.Info("running with proxy", "user", l.user, "proxy", proxychain.Redact(p.Normalized))
	} else {
		l.logger.Info("running without proxy", "user", l.user)
	}

	if err != nil {
		return fmt.Errorf("liveness probe: %w", err)
	}
	return nil
}
