package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/model"
)

// Verifier checks that the extension popup renders inside the session.
type Verifier struct {
	dash  config.Dashboard
	store *artifact.Store
	options
}

// NewVerifier creates a Verifier. The DOM is written to store when the
// onboarding dialog is absent.
func NewVerifier(dash config.Dashboard, store *artifact.Store, opts ...Option) *Verifier {
	return &Verifier{dash: dash, store: store, options: newOptions(opts)}
}

// PopupURL returns the popup address of the extension.
func (v *Verifier) PopupURL(extensionID string) string {
	return "chrome-extension://" + extensionID + "/" + strings.TrimPrefix(v.dash.ExtensionPage, "/")
}

// Verify opens the popup and waits for its status panel.
//
// It returns model.RegionBlocked when the service refuses the region, and
// model.ConnectivityUnknown when the flow should go on to the status check.
// A popup that does not render returns an error wrapping
// ErrExtensionVerificationTimeout.
func (v *Verifier) Verify(ctx context.Context, s *browser.Session, extensionID string) (model.ConnectivityResult, error) {
	d := s.Driver()
	sel := v.dash.Selectors

	url := v.PopupURL(extensionID)
	v.logger.Info("opening extension", "url", url)
	if err := d.Navigate(ctx, url); err != nil {
		return model.ConnectivityUnknown, fmt.Errorf("failed to open extension popup: %w", err)
	}

	if _, err := d.WaitFor(ctx, sel.StatusMarker, v.timeout); err != nil {
		if errors.Is(err, browser.ErrWaitTimeout) {
			return model.ConnectivityUnknown, fmt.Errorf("%w: %w", ErrExtensionVerificationTimeout, err)
		}
		return model.ConnectivityUnknown, err
	}
	v.logger.Info("extension loaded")
	if err := s.Transition(model.SessionExtensionVerified); err != nil {
		return model.ConnectivityUnknown, err
	}

	if err := v.dismissOnboarding(ctx, s); err != nil {
		return model.ConnectivityUnknown, err
	}

	region, err := d.Find(ctx, sel.RegionMessage)
	if err != nil {
		return model.ConnectivityUnknown, err
	}
	if region.Found() {
		v.logger.Warn("gradient is not yet available in your region")
		if err := s.Transition(model.SessionRegionBlocked); err != nil {
			return model.ConnectivityUnknown, err
		}
		return model.RegionBlocked, nil
	}
	v.logger.Info("gradient is available in your region")

	v.snapshots.Capture(ctx, s, model.CheckpointPostVerification)
	return model.ConnectivityUnknown, nil
}

// dismissOnboarding clicks the onboarding button when present. Without it,
// the DOM is saved so that a changed popup layout can be inspected.
func (v *Verifier) dismissOnboarding(ctx context.Context, s *browser.Session) error {
	d := s.Driver()

	lookup, err := d.Find(ctx, v.dash.Selectors.OnboardingDismiss)
	if err != nil {
		return err
	}
	if button, ok := lookup.Element(); ok {
		if err := button.Click(ctx); err != nil {
			return fmt.Errorf("failed to dismiss onboarding: %w", err)
		}
		v.logger.Info("onboarding dismissed")
		return nil
	}

	v.logger.Info("no onboarding dialog found, skipping")
	html, err := d.HTML(ctx)
	if err != nil {
		v.logger.Warn("failed to read DOM", "error", err)
		return nil
	}
	path, err := v.store.Write(artifact.DOMFile, []byte(html))
	if err != nil {
		v.logger.Warn("failed to save DOM", "error", err)
		return nil
	}
	v.logger.Debug("DOM saved", "path", path)
	return nil
}
