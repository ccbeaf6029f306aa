package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/dashboard"
	"github.com/nao1215/gradientbot/internal/model"
)

// Step names, also recorded in the run history.
const (
	StageProvision    = "provision"
	StageLaunch       = "launch"
	StageLogin        = "login"
	StageVerify       = "verify_extension"
	StageConnectivity = "connectivity"
)

// ErrNoSession is returned by a browser step that runs before launch.
var ErrNoSession = errors.New("no browser session")

// ExtensionSource provides the extension package.
type ExtensionSource interface {
	Ensure(ctx context.Context, id string) (*model.ExtensionPackage, error)
}

// ProxySource turns the raw proxy address into a local endpoint.
type ProxySource interface {
	Provision(ctx context.Context, raw string) (*model.ProxyConfig, error)
}

// SessionLauncher starts the browser session.
type SessionLauncher interface {
	Launch(ctx context.Context, cfg browser.LaunchConfig) (*browser.Session, error)
}

// Authenticator signs in to the dashboard.
type Authenticator interface {
	Authenticate(ctx context.Context, s *browser.Session, user, password string) error
}

// ExtensionVerifier checks the extension popup.
type ExtensionVerifier interface {
	Verify(ctx context.Context, s *browser.Session, extensionID string) (model.ConnectivityResult, error)
}

// StatusChecker reads the connectivity status.
type StatusChecker interface {
	Check(ctx context.Context, s *browser.Session) (dashboard.Status, error)
}

// ProvisionStep fetches the extension and prepares the proxy concurrently.
type ProvisionStep struct {
	extensions ExtensionSource
	proxies    ProxySource
	logger     *slog.Logger
}

// NewProvisionStep creates a ProvisionStep.
func NewProvisionStep(extensions ExtensionSource, proxies ProxySource, logger *slog.Logger) *ProvisionStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProvisionStep{extensions: extensions, proxies: proxies, logger: logger}
}

// Name returns the step name.
func (s *ProvisionStep) Name() string {
	return StageProvision
}

// Do runs both provisioners. The first failure cancels the other.
// The group context ends when Wait returns; the forwarder started by the
// proxy source keeps serving until it is closed.
func (s *ProvisionStep) Do(ctx context.Context, state *State) error {
	var (
		pkg   *model.ExtensionPackage
		proxy *model.ProxyConfig
	)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pkg, err = s.extensions.Ensure(gctx, state.ExtensionID)
		return err
	})
	g.Go(func() error {
		var err error
		proxy, err = s.proxies.Provision(gctx, state.ProxyAddress)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	state.Package = pkg
	state.Proxy = proxy
	s.logger.Debug("provisioning complete",
		"cached", pkg.Cached,
		"proxy", proxy != nil,
		"elapsed", time.Since(started))
	return nil
}

// LaunchStep starts the browser with the provisioned extension and proxy.
type LaunchStep struct {
	launcher SessionLauncher
	base     browser.LaunchConfig
}

// NewLaunchStep creates a LaunchStep. Package and Proxy of base are taken
// from the state.
func NewLaunchStep(launcher SessionLauncher, base browser.LaunchConfig) *LaunchStep {
	return &LaunchStep{launcher: launcher, base: base}
}

// Name returns the step name.
func (s *LaunchStep) Name() string {
	return StageLaunch
}

// Do launches the browser.
func (s *LaunchStep) Do(ctx context.Context, state *State) error {
	cfg := s.base
	cfg.Package = state.Package
	cfg.Proxy = state.Proxy

	sess, err := s.launcher.Launch(ctx, cfg)
	if sess != nil {
		state.Session = sess
	}
	return err
}

// LoginStep signs in to the dashboard.
type LoginStep struct {
	auth Authenticator
}

// NewLoginStep creates a LoginStep.
func NewLoginStep(auth Authenticator) *LoginStep {
	return &LoginStep{auth: auth}
}

// Name returns the step name.
func (s *LoginStep) Name() string {
	return StageLogin
}

// Do signs in with the state credentials.
func (s *LoginStep) Do(ctx context.Context, state *State) error {
	if state.Session == nil {
		return ErrNoSession
	}
	return s.auth.Authenticate(ctx, state.Session, state.User, state.Password)
}

// VerifyStep checks the extension popup.
type VerifyStep struct {
	verifier ExtensionVerifier
}

// NewVerifyStep creates a VerifyStep.
func NewVerifyStep(verifier ExtensionVerifier) *VerifyStep {
	return &VerifyStep{verifier: verifier}
}

// Name returns the step name.
func (s *VerifyStep) Name() string {
	return StageVerify
}

// Do verifies the extension. A blocked region ends the pipeline.
func (s *VerifyStep) Do(ctx context.Context, state *State) error {
	if state.Session == nil {
		return ErrNoSession
	}
	result, err := s.verifier.Verify(ctx, state.Session, state.Session.ExtensionID())
	if err != nil {
		return err
	}
	if result != model.ConnectivityUnknown {
		state.Result = result
	}
	return nil
}

// ConnectivityStep reads the status indicator.
type ConnectivityStep struct {
	checker StatusChecker
}

// NewConnectivityStep creates a ConnectivityStep.
func NewConnectivityStep(checker StatusChecker) *ConnectivityStep {
	return &ConnectivityStep{checker: checker}
}

// Name returns the step name.
func (s *ConnectivityStep) Name() string {
	return StageConnectivity
}

// Do classifies the status.
func (s *ConnectivityStep) Do(ctx context.Context, state *State) error {
	if state.Session == nil {
		return ErrNoSession
	}
	status, err := s.checker.Check(ctx, state.Session)
	if err != nil {
		return err
	}
	state.Result = status.Result
	state.StatusText = status.Text
	return nil
}

// Components are the collaborators of the default pipeline.
type Components struct {
	Extensions ExtensionSource
	Proxies    ProxySource
	Launcher   SessionLauncher
	Login      Authenticator
	Verifier   ExtensionVerifier
	Checker    StatusChecker

	// Launch is the browser configuration without Package and Proxy.
	Launch browser.LaunchConfig
}

// Default builds the pipeline of a run.
func Default(c Components, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewProvisionStep(c.Extensions, c.Proxies, p.logger),
		NewLaunchStep(c.Launcher, c.Launch),
		NewLoginStep(c.Login),
		NewVerifyStep(c.Verifier),
		NewConnectivityStep(c.Checker),
	)
	return p
}
