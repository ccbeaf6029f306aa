package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/model"
)

// Checker reads the status indicator of the extension popup.
type Checker struct {
	dash  config.Dashboard
	store *artifact.Store
	options
}

// NewChecker creates a Checker. dom.html and status.png are written to store.
func NewChecker(dash config.Dashboard, store *artifact.Store, opts ...Option) *Checker {
	return &Checker{dash: dash, store: store, options: newOptions(opts)}
}

// Status is the classified status indicator.
type Status struct {
	Result model.ConnectivityResult

	// Text is the indicator text as displayed.
	Text string
}

// Check waits for the usage panel, reads the status indicator and moves the
// session to the state matching the result. A panel that does not render
// returns an error wrapping ErrExtensionVerificationTimeout.
func (c *Checker) Check(ctx context.Context, s *browser.Session) (Status, error) {
	d := s.Driver()
	sel := c.dash.Selectors

	if _, err := d.WaitFor(ctx, sel.UsageMarker, c.timeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return Status{}, fmt.Errorf("%w: %w", ErrExtensionVerificationTimeout, err)
		}
		return Status{}, err
	}

	lookup, err := d.Find(ctx, sel.StatusIndicator)
	if err != nil {
		return Status{}, err
	}
	indicator, ok := lookup.Element()
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrStatusIndicatorMissing, sel.StatusIndicator)
	}
	text, err := indicator.Text(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read status indicator: %w", err)
	}

	c.saveDOM(ctx, d)
	c.snapshots.Capture(ctx, s, model.CheckpointStatus)

	st := Status{Result: Classify(text, c.dash.Phrases), Text: text}
	c.logger.Info("extension status", "status", text, "result", st.Result)

	if err := s.Transition(st.Result.SessionState()); err != nil {
		return st, err
	}
	return st, nil
}

func (c *Checker) saveDOM(ctx context.Context, d browser.Driver) {
	html, err := d.HTML(ctx)
	if err != nil {
		c.logger.Warn("failed to read DOM", "error", err)
		return
	}
	if _, err := c.store.Write(artifact.DOMFile, []byte(html)); err != nil {
		c.logger.Warn("failed to save DOM", "error", err)
	}
}

// Classify maps the indicator text to a result. The region phrase wins
// over the disconnected phrase; any other text means connected. Text and
// phrases are compared after NFKC normalization, so full-width or
// compatibility characters match their plain forms.
func Classify(text string, phrases config.Phrases) model.ConnectivityResult {
	t := norm.NFKC.String(text)
	switch {
	case phrases.RegionBlocked != "" && strings.Contains(t, norm.NFKC.String(phrases.RegionBlocked)):
		return model.RegionBlocked
	case phrases.Disconnected != "" && strings.Contains(t, norm.NFKC.String(phrases.Disconnected)):
		return model.Disconnected
	default:
		return model.Connected
	}
}
