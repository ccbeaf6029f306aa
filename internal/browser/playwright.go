package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// maxConsoleEntries bounds the console buffer of a long-running session.
// Older entries are dropped first.
const maxConsoleEntries = 1000

// PlaywrightLauncher starts Chromium through playwright-go.
// The Playwright driver and the Chromium build are installed on first use.
type PlaywrightLauncher struct {
	logger      *slog.Logger
	skipInstall bool

	mu        sync.Mutex
	installed bool
}

// LauncherOption configures a PlaywrightLauncher.
type LauncherOption func(*PlaywrightLauncher)

// WithLauncherLogger sets the logger.
func WithLauncherLogger(logger *slog.Logger) LauncherOption {
	return func(l *PlaywrightLauncher) {
		l.logger = logger
	}
}

// WithSkipInstall skips the browser download, for images that ship Chromium
// already.
func WithSkipInstall(skip bool) LauncherOption {
	return func(l *PlaywrightLauncher) {
		l.skipInstall = skip
	}
}

// NewPlaywrightLauncher creates a PlaywrightLauncher.
func NewPlaywrightLauncher(opts ...LauncherOption) *PlaywrightLauncher {
	l := &PlaywrightLauncher{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *PlaywrightLauncher) runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		Browsers:            []string{"chromium"},
		SkipInstallBrowsers: l.skipInstall,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
}

func (l *PlaywrightLauncher) install() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.installed {
		return nil
	}
	l.logger.Info("installing browser driver (first start can take several minutes)")
	if err := playwright.Install(l.runOptions()); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	l.installed = true
	return nil
}

type launchResult struct {
	driver *playwrightDriver
	err    error
}

// Launch implements Launcher. When ctx ends before the browser is up,
// the browser is closed as soon as it finishes starting.
func (l *PlaywrightLauncher) Launch(ctx context.Context, spec LaunchSpec) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan launchResult, 1)
	go func() {
		d, err := l.launch(spec)
		done <- launchResult{driver: d, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.driver, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.driver != nil {
				_ = r.driver.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (l *PlaywrightLauncher) launch(spec LaunchSpec) (*playwrightDriver, error) {
	if err := l.install(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(l.runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Args: spec.Args,
		// The headless flag of Playwright selects the headless shell build,
		// which cannot load extensions. Headless mode is requested through
		// Args instead.
		Headless:          playwright.Bool(false),
		ChromiumSandbox:   playwright.Bool(false),
		IgnoreHttpsErrors: playwright.Bool(true),
		IgnoreDefaultArgs: []string{"--disable-extensions"},
	}
	if spec.UserAgent != "" {
		opts.UserAgent = playwright.String(spec.UserAgent)
	}
	if spec.ProxyServer != "" {
		opts.Proxy = &playwright.Proxy{Server: spec.ProxyServer}
	}
	if spec.Timeout > 0 {
		opts.Timeout = millis(spec.Timeout)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(spec.UserDataDir, opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = bctx.NewPage()
		if err != nil {
			_ = bctx.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
	}

	d := &playwrightDriver{pw: pw, bctx: bctx, page: page}
	if spec.DefaultTimeout > 0 {
		page.SetDefaultTimeout(float64(spec.DefaultTimeout.Milliseconds()))
	}
	page.OnConsole(d.recordConsole)
	return d, nil
}

// playwrightDriver is the Driver of one persistent Chromium context.
type playwrightDriver struct {
	pw   *playwright.Playwright
	bctx playwright.BrowserContext
	page playwright.Page

	mu      sync.Mutex
	console []ConsoleEntry

	closeOnce sync.Once
	closeErr  error
}

func (d *playwrightDriver) recordConsole(msg playwright.ConsoleMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.console) >= maxConsoleEntries {
		d.console = d.console[1:]
	}
	d.console = append(d.console, ConsoleEntry{
		Level:   msg.Type(),
		Message: msg.Text(),
		Time:    time.Now(),
	})
}

// Navigate implements Driver.
func (d *playwrightDriver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitFor implements Driver.
func (d *playwrightDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := d.page.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: millis(timeout),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, selector, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", selector, err)
	}
	return &playwrightElement{loc: loc}, nil
}

// Find implements Driver.
func (d *playwrightDriver) Find(ctx context.Context, selector string) (Lookup, error) {
	if err := ctx.Err(); err != nil {
		return NotFound(), err
	}
	loc := d.page.Locator(selector)
	n, err := loc.Count()
	if err != nil {
		return NotFound(), fmt.Errorf("find %s: %w", selector, err)
	}
	if n == 0 {
		return NotFound(), nil
	}
	return Found(&playwrightElement{loc: loc.First()}), nil
}

// HTML implements Driver.
func (d *playwrightDriver) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.Content()
}

// Title implements Driver.
func (d *playwrightDriver) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return d.page.Title()
}

// Screenshot implements Driver.
func (d *playwrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

// ConsoleLogs implements Driver.
func (d *playwrightDriver) ConsoleLogs() []ConsoleEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]ConsoleEntry, len(d.console))
	copy(out, d.console)
	return out
}

// Close implements Driver. Closing the persistent context ends the browser
// process; the Playwright driver is stopped afterwards.
func (d *playwrightDriver) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if err := d.bctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser context: %w", err))
		}
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click()
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Fill(value)
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.loc.InnerText()
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}
