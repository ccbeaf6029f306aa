package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/dashboard"
	"github.com/nao1215/gradientbot/internal/extension"
	"github.com/nao1215/gradientbot/internal/model"
	"github.com/nao1215/gradientbot/internal/pipeline"
	"github.com/nao1215/gradientbot/internal/proxychain"
	"github.com/nao1215/gradientbot/internal/report"
)

// Reporter captures the diagnostics of a failed run.
type Reporter interface {
	Capture(ctx context.Context, s *browser.Session, cause error) model.ErrorReport
}

// Supervisor keeps a connected session alive until ctx is done.
type Supervisor func(ctx context.Context, s *browser.Session) error

// History records runs. Failures are logged, never fatal.
type History interface {
	StartRun(ctx context.Context, rec *model.RunRecord) error
	FinishRun(ctx context.Context, rec *model.RunRecord) error
}

// Result describes how a run ended.
type Result struct {
	Outcome model.Outcome
	Failure model.FailureKind

	// Err is the fatal error, nil for region, disconnected and connected outcomes.
	Err error

	// Stage is the last stage that started.
	Stage string

	// StatusText is the status indicator text, if it was read.
	StatusText string

	// Report is set when an error report was captured.
	Report *model.ErrorReport

	Record *model.RunRecord
}

// ExitCode returns the process exit code.
func (r Result) ExitCode() int {
	return r.Outcome.ExitCode()
}

// Runner executes the pipeline and handles its outcome.
type Runner struct {
	cfg       config.Config
	pipeline  *pipeline.Pipeline
	reporter  Reporter
	snapshots dashboard.Snapshotter
	supervise Supervisor
	history   History
	closers   []io.Closer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	sleep     func(ctx context.Context, d time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithReporter sets the error reporter.
func WithReporter(r Reporter) Option {
	return func(rn *Runner) {
		rn.reporter = r
	}
}

// WithSnapshotter sets the snapshotter used for the connected checkpoint.
func WithSnapshotter(s dashboard.Snapshotter) Option {
	return func(rn *Runner) {
		rn.snapshots = s
	}
}

// WithSupervisor replaces the supervision loop.
func WithSupervisor(s Supervisor) Option {
	return func(rn *Runner) {
		rn.supervise = s
	}
}

// WithHistory records every run in h.
func WithHistory(h History) Option {
	return func(rn *Runner) {
		rn.history = h
	}
}

// WithCloser registers a resource released when the run ends, after the browser.
func WithCloser(c io.Closer) Option {
	return func(rn *Runner) {
		rn.closers = append(rn.closers, c)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rn *Runner) {
		rn.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(rn *Runner) {
		rn.now = now
	}
}

// WithSleep replaces the flush delay wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(rn *Runner) {
		rn.sleep = sleep
	}
}

// New creates a Runner executing p with the settings of cfg.
func New(cfg config.Config, p *pipeline.Pipeline, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		pipeline: p,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.supervise == nil {
		r.supervise = func(ctx context.Context, s *browser.Session) error {
			<-ctx.Done()
			return nil
		}
	}
	return r
}

// Run executes one run and returns its result. It blocks while a connected
// session is supervised, that is until ctx is done.
func (r *Runner) Run(ctx context.Context) Result {
	rec := &model.RunRecord{
		ID:        r.newID(),
		User:      r.cfg.User,
		StartedAt: r.now(),
		Outcome:   model.OutcomeRunning,
	}
	if r.cfg.HasProxy() {
		rec.Proxy = proxychain.Redact(proxychain.Normalize(r.cfg.ProxyAddress))
	}
	r.startRecord(ctx, rec)
	r.logger.Info("run started", "run", rec.ID, "user", r.cfg.User)

	state := &pipeline.State{
		User:         r.cfg.User,
		Password:     r.cfg.Password,
		ExtensionID:  r.cfg.ExtensionID,
		ProxyAddress: r.cfg.ProxyAddress,
	}
	err := r.pipeline.Execute(ctx, state)

	res := r.handle(ctx, state, err)
	res.Stage = state.Stage
	res.StatusText = state.StatusText
	res.Record = rec

	r.release()

	rec.FinishedAt = r.now()
	rec.Outcome = res.Outcome
	rec.Failure = res.Failure
	rec.Stage = res.Stage
	switch {
	case res.Err != nil:
		rec.Message = res.Err.Error()
	case res.StatusText != "":
		rec.Message = res.StatusText
	}
	if state.Package != nil {
		rec.ExtensionChecksum = state.Package.Checksum
	}
	if res.Report != nil {
		rec.Artifacts = res.Report.Files
	}
	r.finishRecord(ctx, rec)

	r.logger.Info("run finished",
		"run", rec.ID,
		"outcome", res.Outcome,
		"exit_code", res.ExitCode(),
		"elapsed", rec.Duration())
	return res
}

func (r *Runner) handle(ctx context.Context, state *pipeline.State, err error) Result {
	sess := state.Session

	if err != nil {
		if ctx.Err() != nil {
			r.logger.Warn("run interrupted", "stage", state.Stage)
			r.closeSession(sess)
			return Result{Outcome: model.OutcomeInterrupted, Err: err}
		}
		return r.fail(ctx, sess, state.Stage, err)
	}

	switch state.Result {
	case model.RegionBlocked:
		r.logger.Error("gradient is not available in the egress region; use a proxy in a supported region")
		r.closeSession(sess)
		return Result{Outcome: model.OutcomeRegionBlocked}

	case model.Disconnected:
		r.logger.Warn("support_status", "status", state.StatusText)
		for _, hint := range report.Remediation(r.proxyCheck(sess)) {
			r.logger.Warn(hint)
		}
		rep := r.capture(ctx, sess, ErrDisconnected)
		r.closeSession(sess)
		r.logger.Info("waiting for logs to flush", "delay", r.cfg.FlushDelay)
		r.sleep(ctx, r.cfg.FlushDelay)
		return Result{Outcome: model.OutcomeDisconnected, Report: rep}

	case model.Connected:
		r.logger.Info("support_status", "status", state.StatusText)
		if r.snapshots != nil {
			r.snapshots.Capture(ctx, sess, model.CheckpointConnected)
		}
		if err := r.supervise(ctx, sess); err != nil {
			r.logger.Warn("supervision ended with an error", "error", err)
		}
		r.closeSession(sess)
		return Result{Outcome: model.OutcomeConnected}

	default:
		return r.fail(ctx, sess, state.Stage, ErrNoResult)
	}
}

// fail captures the error report when a browser exists and closes it.
func (r *Runner) fail(ctx context.Context, sess *browser.Session, stage string, err error) Result {
	kind := Classify(err)
	if kind == model.FailureUnknown && !errors.Is(err, ErrUnknownFatal) {
		err = fmt.Errorf("%w: %w", ErrUnknownFatal, err)
	}
	r.logger.Error("run failed", "stage", stage, "failure", kind, "error", err)

	res := Result{Outcome: model.OutcomeFailed, Failure: kind, Err: err}
	if sess != nil {
		res.Report = r.capture(ctx, sess, err)
	}
	r.closeSession(sess)
	return res
}

func (r *Runner) capture(ctx context.Context, sess *browser.Session, cause error) *model.ErrorReport {
	if r.reporter == nil {
		return nil
	}
	rep := r.reporter.Capture(ctx, sess, cause)
	return &rep
}

// proxyCheck returns the manual proxy probe for the hints, empty without proxy.
func (r *Runner) proxyCheck(sess *browser.Session) string {
	var p *model.ProxyConfig
	switch {
	case sess != nil && sess.Proxy() != nil:
		p = sess.Proxy()
	case r.cfg.HasProxy():
		p = &model.ProxyConfig{Normalized: proxychain.Normalize(r.cfg.ProxyAddress)}
	default:
		return ""
	}
	return browser.ProxyCheckCommand(p, r.cfg.Dashboard.IPEchoURL)
}

func (r *Runner) closeSession(sess *browser.Session) {
	if sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		r.logger.Warn("failed to close browser", "error", err)
		return
	}
	r.logger.Info("browser closed")
}

func (r *Runner) release() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			r.logger.Warn("failed to release resource", "error", err)
		}
	}
}

func (r *Runner) startRecord(ctx context.Context, rec *model.RunRecord) {
	if r.history == nil {
		return
	}
	if err := r.history.StartRun(ctx, rec); err != nil {
		r.logger.Warn("failed to record run start", "error", err)
	}
}

func (r *Runner) finishRecord(ctx context.Context, rec *model.RunRecord) {
	if r.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.history.FinishRun(ctx, rec); err != nil {
		r.logger.Warn("failed to record run end", "error", err)
	}
}

// Classify maps a stage error to its failure kind.
func Classify(err error) model.FailureKind {
	switch {
	case err == nil:
		return model.FailureNone
	case errors.Is(err, extension.ErrDownload):
		return model.FailureDownload
	case errors.Is(err, proxychain.ErrProvision):
		return model.FailureProxyProvision
	case errors.Is(err, browser.ErrProxyHealthCheck):
		return model.FailureProxyHealthCheck
	case errors.Is(err, browser.ErrLaunch):
		return model.FailureLaunch
	case errors.Is(err, dashboard.ErrLoginTimeout):
		return model.FailureLoginTimeout
	case errors.Is(err, dashboard.ErrExtensionVerificationTimeout):
		return model.FailureExtensionVerificationTimeout
	default:
		return model.FailureUnknown
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
