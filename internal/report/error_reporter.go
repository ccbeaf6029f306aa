package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goerrors "github.com/go-errors/errors"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/log"
	"github.com/nao1215/gradientbot/internal/model"
	"github.com/nao1215/gradientbot/internal/proxychain"
)

// ErrorReporter writes the failure diagnostics of a run.
type ErrorReporter struct {
	store     *artifact.Store
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
	ipEchoURL string
}

// NewErrorReporter creates an ErrorReporter writing into store.
func NewErrorReporter(store *artifact.Store, opts ...Option) *ErrorReporter {
	o := newOptions(opts)
	return &ErrorReporter{
		store:     store,
		logger:    o.logger,
		timeout:   o.timeout,
		now:       o.now,
		ipEchoURL: o.ipEchoURL,
	}
}

// Capture writes error.png, error.log, error-stack.txt and error-report.md.
//
// Each file is attempted on its own; a failed capture is recorded in the
// returned report and logged, and never stops the others. Capture runs on a
// context that ignores the caller's cancellation but is bounded by the
// reporter timeout, so a shutting-down run still gets its diagnostics
// without hanging. sess may be nil when no browser was started.
func (r *ErrorReporter) Capture(ctx context.Context, sess *browser.Session, cause error) model.ErrorReport {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	rep := model.ErrorReport{CapturedAt: r.now()}
	if cause != nil {
		rep.Cause = log.MaskURLCredentials(cause.Error())
	}

	var errs []error
	write := func(name string, data []byte) {
		path, err := r.store.Write(name, data)
		if err != nil {
			errs = append(errs, err)
			return
		}
		rep.Files = append(rep.Files, path)
	}

	if sess == nil || sess.Closed() {
		errs = append(errs, errors.New("screenshot: no open browser session"))
	} else {
		d := sess.Driver()
		if shot, err := d.Screenshot(ctx); err != nil {
			errs = append(errs, fmt.Errorf("screenshot: %w", err))
		} else {
			rep.Screenshot = shot
			write(artifact.ErrorScreenshot, shot)
		}

		rep.ConsoleLog = log.MaskURLCredentials(browser.FormatConsole(d.ConsoleLogs()))
		write(artifact.ErrorLog, []byte(rep.ConsoleLog))
	}

	if cause != nil {
		rep.Stack = log.MaskURLCredentials(Stack(cause))
		write(artifact.ErrorStack, []byte(rep.Stack))
	}

	summary := ErrorSummary{Report: &rep, State: model.SessionCreated}
	if sess != nil {
		summary.State = sess.State()
		summary.ExtensionID = sess.ExtensionID()
		if p := sess.Proxy(); p != nil {
			summary.Proxy = proxychain.Redact(p.Normalized)
			summary.ProxyCheck = browser.ProxyCheckCommand(p, r.ipEchoURL)
		}
	}
	// Errors found so far are part of the summary; the summary's own
	// failure is only logged.
	rep.Errors = errorStrings(errs)
	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).WriteErrorSummary(summary); err != nil {
		errs = append(errs, fmt.Errorf("summary: %w", err))
	} else {
		write(artifact.ErrorSummary, buf.Bytes())
	}
	rep.Errors = errorStrings(errs)

	if err := errors.Join(errs...); err != nil {
		r.logger.Warn("error report incomplete", "error", err)
	}
	r.logger.Info("error report written", "dir", r.store.Dir(), "files", rep.Files)
	return rep
}

// Stack returns the stack trace carried by err. Errors wrapped with
// github.com/go-errors/errors keep the stack of the point where they were
// wrapped; for any other error the stack of the caller is used.
func Stack(err error) string {
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		return ge.ErrorStack()
	}
	return goerrors.Wrap(err, 1).ErrorStack()
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
