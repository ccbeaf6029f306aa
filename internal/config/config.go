package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Timing values match what the dashboard and the extension need in practice.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "gradientbot"

	// DefaultExtensionID is the Chrome Web Store ID of the Gradient Sentry Node extension.
	DefaultExtensionID = "caacbgbklghmpodbdafajbgdnegacfmo"

	// DefaultExtensionURL is the versioned update-service URL. "{id}" is replaced
	// with the extension ID. The pinned prodversion keeps the served package
	// compatible with DefaultUserAgent.
	DefaultExtensionURL = "https://clients2.google.com/service/update2/crx?response=redirect&prodversion=98.0.4758.102&acceptformat=crx2,crx3&x=id%3D{id}%26uc&nacl_arch=x86-64"

	// DefaultUserAgent is sent by both the downloader and the browser.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.102 Safari/537.36"

	// DefaultExtensionFilename is the package file name inside the work directory.
	DefaultExtensionFilename = "app.crx"

	// DefaultExtensionMaxAge is how long a downloaded package is reused.
	// The update service rate limits repeated downloads, so this is a
	// correctness setting rather than a speed optimization.
	DefaultExtensionMaxAge = 24 * time.Hour

	// DefaultWaitTimeout bounds every UI wait.
	DefaultWaitTimeout = 30 * time.Second

	// DefaultProbeInterval is the supervision liveness interval.
	DefaultProbeInterval = 10 * time.Second

	// DefaultFlushDelay is how long a Disconnected run waits before exiting
	// so that artifacts reach the disk.
	DefaultFlushDelay = 5 * time.Second

	// DefaultDownloadTimeout bounds the extension package download.
	DefaultDownloadTimeout = 2 * time.Minute

	// DefaultLaunchTimeout bounds the browser start. First starts in slow
	// containers can take several minutes.
	DefaultLaunchTimeout = 10 * time.Minute

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultWorkDir is where artifacts are written.
	DefaultWorkDir = "."

	// LogFormatText and LogFormatJSON are the accepted log formats.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds every setting of one run.
// It is assembled once at startup and passed by value, so components cannot
// observe later changes.
type Config struct {
	// User and Password are the dashboard credentials. Both are required.
	User     string
	Password string

	// ProxyAddress is the raw upstream proxy. Empty means no proxy.
	ProxyAddress string

	// Debug enables package checksums, browser verbose logging and debug logs.
	Debug bool

	// Verbose enables debug-level logging without the other debug behavior.
	Verbose bool

	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string

	// WorkDir receives the extension package and every diagnostic artifact.
	WorkDir string

	// Headless runs Chromium with the new headless mode.
	Headless bool

	ExtensionID       string
	ExtensionURL      string
	ExtensionFilename string
	ExtensionMaxAge   time.Duration
	UserAgent         string

	WaitTimeout     time.Duration
	ProbeInterval   time.Duration
	FlushDelay      time.Duration
	DownloadTimeout time.Duration
	LaunchTimeout   time.Duration

	// UseEmbeddedTor starts a Tor daemon and uses it as the upstream proxy.
	// It cannot be combined with ProxyAddress.
	UseEmbeddedTor    bool
	TorStartupTimeout time.Duration

	// Dashboard holds URLs, selectors and phrases of the target UI.
	Dashboard Dashboard

	// ConfigFilePath is the YAML override file, empty to search the defaults.
	ConfigFilePath string

	// SaveHistory records each run in the SQLite history database in DBDir.
	SaveHistory bool
	DBDir       string
}

// NewConfig creates a Config with default values.
func NewConfig() Config {
	return Config{
		LogFormat:         LogFormatText,
		WorkDir:           DefaultWorkDir,
		Headless:          true,
		ExtensionID:       DefaultExtensionID,
		ExtensionURL:      DefaultExtensionURL,
		ExtensionFilename: DefaultExtensionFilename,
		ExtensionMaxAge:   DefaultExtensionMaxAge,
		UserAgent:         DefaultUserAgent,
		WaitTimeout:       DefaultWaitTimeout,
		ProbeInterval:     DefaultProbeInterval,
		FlushDelay:        DefaultFlushDelay,
		DownloadTimeout:   DefaultDownloadTimeout,
		LaunchTimeout:     DefaultLaunchTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Dashboard:         DefaultDashboard(),
		SaveHistory:       true,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for gradientbot.
// On Linux: ~/.local/share/gradientbot
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ExtensionSourceURL returns ExtensionURL with the extension ID filled in.
func (c Config) ExtensionSourceURL() string {
	return strings.ReplaceAll(c.ExtensionURL, "{id}", c.ExtensionID)
}

// ExtensionPath returns the package file location.
func (c Config) ExtensionPath() string {
	return filepath.Join(c.WorkDir, c.ExtensionFilename)
}

// HasProxy reports whether an upstream proxy is configured.
func (c Config) HasProxy() bool {
	return strings.TrimSpace(c.ProxyAddress) != ""
}

// Validate checks the configuration and returns the first problem found.
// Missing credentials are checked first so the process aborts before any
// network or browser activity.
func (c Config) Validate() error {
	if c.User == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if c.WorkDir == "" {
		return ErrEmptyWorkDir
	}
	if c.ExtensionID == "" {
		return ErrEmptyExtensionID
	}
	if c.WaitTimeout <= 0 {
		return ErrInvalidWaitTimeout
	}
	if c.ProbeInterval <= 0 {
		return ErrInvalidProbeInterval
	}
	if c.FlushDelay < 0 {
		return ErrInvalidFlushDelay
	}
	if c.UseEmbeddedTor && c.HasProxy() {
		return ErrConflictingProxySources
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	return c.Dashboard.Validate()
}
