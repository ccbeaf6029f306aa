package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/model"
)

// LoginFlow signs in to the dashboard with email and password.
type LoginFlow struct {
	dash config.Dashboard
	options
}

// NewLoginFlow creates a LoginFlow for dash.
func NewLoginFlow(dash config.Dashboard, opts ...Option) *LoginFlow {
	return &LoginFlow{dash: dash, options: newOptions(opts)}
}

// Authenticate fills the login form and waits for the post-login marker.
// A missing form element or marker returns an error wrapping ErrLoginTimeout.
// On success the session moves to SessionAuthenticated.
func (f *LoginFlow) Authenticate(ctx context.Context, s *browser.Session, user, password string) error {
	d := s.Driver()

	f.logger.Info("logging in", "url", f.dash.URL, "user", user)
	if err := d.Navigate(ctx, f.dash.URL); err != nil {
		return fmt.Errorf("failed to open dashboard: %w", err)
	}
	f.snapshots.Capture(ctx, s, model.CheckpointPreLogin)

	sel := f.dash.Selectors
	email, err := f.wait(ctx, d, sel.Email)
	if err != nil {
		return err
	}
	pass, err := f.wait(ctx, d, sel.Password)
	if err != nil {
		return err
	}
	submit, err := f.wait(ctx, d, sel.Submit)
	if err != nil {
		return err
	}

	if err := email.Fill(ctx, user); err != nil {
		return fmt.Errorf("failed to enter email: %w", err)
	}
	if err := pass.Fill(ctx, password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	if _, err := f.wait(ctx, d, sel.LoginMarker); err != nil {
		return err
	}
	f.logger.Info("logged in")
	f.snapshots.Capture(ctx, s, model.CheckpointPostLogin)

	return s.Transition(model.SessionAuthenticated)
}

func (f *LoginFlow) wait(ctx context.Context, d browser.Driver, selector string) (browser.Element, error) {
	e, err := d.WaitFor(ctx, selector, f.timeout)
	if errors.Is(err, browser.ErrWaitTimeout) {
		return nil, fmt.Errorf("%w: %w", ErrLoginTimeout, err)
	}
	return e, err
}
