package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/gradientbot/internal/extension"
	"github.com/nao1215/gradientbot/internal/model"
	"github.com/nao1215/gradientbot/internal/proxychain"
)

const (
	// ExtensionDirName is the directory the package is unpacked into,
	// relative to the work directory.
	ExtensionDirName = "extension"

	// DefaultIPEchoURL returns the caller's public IP as plain text.
	DefaultIPEchoURL = "https://myip.ipip.net"

	// DefaultWaitTimeout bounds every UI wait issued by the manager.
	DefaultWaitTimeout = 30 * time.Second
)

// LaunchConfig describes one browser launch.
type LaunchConfig struct {
	// Package is the provisioned extension. Required.
	Package *model.ExtensionPackage

	// Proxy routes all browser traffic when non-nil.
	Proxy *model.ProxyConfig

	Headless  bool
	Debug     bool
	UserAgent string

	// WorkDir receives the unpacked extension.
	WorkDir string

	// IPEchoURL is loaded through the proxy to check it. Defaults to DefaultIPEchoURL.
	IPEchoURL string

	// WaitTimeout bounds the proxy probe. Defaults to DefaultWaitTimeout.
	WaitTimeout time.Duration

	// LaunchTimeout bounds the browser start. Zero leaves the Playwright default.
	LaunchTimeout time.Duration
}

// UnpackFunc extracts a package into a directory.
type UnpackFunc func(pkgPath, destDir string) (*extension.Unpacked, error)

// Manager launches the browser session of a run.
type Manager struct {
	launcher Launcher
	unpack   UnpackFunc
	logger   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithUnpacker replaces extension.Unpack.
func WithUnpacker(fn UnpackFunc) ManagerOption {
	return func(m *Manager) {
		m.unpack = fn
	}
}

// NewManager creates a Manager that starts browsers through launcher.
func NewManager(launcher Launcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		launcher: launcher,
		unpack:   extension.Unpack,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Launch unpacks the extension and starts the browser with it.
//
// With a proxy, the IP echo page is loaded right after the start. If that
// probe fails, Launch returns the open Session together with an error
// wrapping ErrProxyHealthCheck, so the caller can capture diagnostics before
// closing it. Every other failure wraps ErrLaunch and leaves no browser behind.
func (m *Manager) Launch(ctx context.Context, cfg LaunchConfig) (*Session, error) {
	if cfg.Package == nil {
		return nil, fmt.Errorf("%w: no extension package", ErrLaunch)
	}
	if cfg.IPEchoURL == "" {
		cfg.IPEchoURL = DefaultIPEchoURL
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}

	unpacked, err := m.unpack(cfg.Package.Path, filepath.Join(cfg.WorkDir, ExtensionDirName))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	extensionID := cfg.Package.ID
	if unpacked.ID != "" && unpacked.ID != extensionID {
		m.logger.Warn("extension key does not match the configured id",
			"configured", extensionID,
			"derived", unpacked.ID)
		extensionID = unpacked.ID
	}
	m.logger.Info("extension unpacked",
		"id", extensionID,
		"name", unpacked.Name,
		"version", unpacked.Version,
		"files", unpacked.Files)

	spec := m.launchSpec(cfg, unpacked.Dir)

	m.logger.Info("starting browser (this may take several minutes)", "headless", cfg.Headless)
	driver, err := m.launcher.Launch(ctx, spec)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	m.logger.Info("browser started")

	s := NewSession(driver, extensionID, cfg.Proxy)
	if cfg.Proxy == nil {
		m.logger.Info("no proxy set")
		return s, nil
	}
	if err := m.checkProxy(ctx, s, cfg); err != nil {
		return s, err
	}
	return s, nil
}

// launchSpec builds the Chromium switches for cfg.
func (m *Manager) launchSpec(cfg LaunchConfig, extensionDir string) LaunchSpec {
	spec := LaunchSpec{
		ExtensionDir:   extensionDir,
		Args:           ChromiumArgs(cfg, extensionDir),
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.LaunchTimeout,
		DefaultTimeout: cfg.WaitTimeout,
	}
	if cfg.Proxy != nil {
		spec.ProxyServer = cfg.Proxy.Endpoint
		m.logger.Info("proxy configured",
			"upstream", proxychain.Redact(cfg.Proxy.Normalized),
			"host", cfg.Proxy.Host,
			"port", cfg.Proxy.Port)
	}
	return spec
}

// ChromiumArgs returns the command-line switches for cfg.
// Every cache is disabled so each start talks to the service afresh.
func ChromiumArgs(cfg LaunchConfig, extensionDir string) []string {
	args := make([]string, 0, 24)
	if cfg.UserAgent != "" {
		args = append(args, "--user-agent="+cfg.UserAgent)
	}
	if cfg.Headless {
		args = append(args, "--headless=new")
	}
	args = append(args,
		"--ignore-certificate-errors",
		"--ignore-ssl-errors",
		"--no-sandbox",
		"--remote-allow-origins=*",
		"--dns-prefetch-disable",
		"--disable-dev-shm-usage",
		"--disable-ipv6",
		"--aggressive-cache-discard",
		"--disable-cache",
		"--disable-application-cache",
		"--disable-offline-load-stale-cache",
		"--disk-cache-size=0",
		"--disable-extensions-except="+extensionDir,
		"--load-extension="+extensionDir,
	)
	if cfg.Debug {
		args = append(args, "--enable-logging", "--v=1")
	}
	if cfg.Proxy != nil {
		args = append(args, "--proxy-server=socks5://"+cfg.Proxy.HostPort())
	}
	return args
}

// ProxyCheckCommand returns the shell command a user can run to test the
// proxy by hand. Credentials are redacted.
func ProxyCheckCommand(p *model.ProxyConfig, ipEchoURL string) string {
	if ipEchoURL == "" {
		ipEchoURL = DefaultIPEchoURL
	}
	proxy := ""
	if p != nil {
		proxy = proxychain.Redact(p.Normalized)
	}
	return fmt.Sprintf("curl -vv -x %s %s", proxy, ipEchoURL)
}

// checkProxy loads the IP echo page and requires a non-empty body.
func (m *Manager) checkProxy(ctx context.Context, s *Session, cfg LaunchConfig) error {
	m.logger.Info("checking proxy", "url", cfg.IPEchoURL)

	text, err := readEcho(ctx, s.Driver(), cfg.IPEchoURL, cfg.WaitTimeout)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		m.logger.Error("failed to get proxy ip info", "error", err)
		return fmt.Errorf("%w: %w; check the proxy with '%s'",
			ErrProxyHealthCheck, err, ProxyCheckCommand(cfg.Proxy, cfg.IPEchoURL))
	}
	m.logger.Info("proxy ip info", "text", text)
	return nil
}

func readEcho(ctx context.Context, d Driver, url string, timeout time.Duration) (string, error) {
	if err := d.Navigate(ctx, url); err != nil {
		return "", err
	}
	body, err := d.WaitFor(ctx, "css=body", timeout)
	if err != nil {
		return "", err
	}
	text, err := body.Text(ctx)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty response body")
	}
	return text, nil
}
