// Package browsertest provides an in-memory browser.Driver for tests.
//
// A Driver holds a set of pages keyed by URL. Navigate switches the current
// page; selectors are matched literally against the elements registered on
// that page. Waits never sleep: a missing element fails immediately with
// browser.ErrWaitTimeout.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/gradientbot/internal/browser"
)

// Page is a fake page.
type Page struct {
	Title    string
	HTML     string
	Elements map[string]*Element
}

// Element is a fake DOM element. It records the interactions it receives.
type Element struct {
	Text string

	// OnClick runs after a click is recorded, for example to reveal
	// elements on the current page.
	OnClick func(d *Driver)

	// ClickErr is returned by Click.
	ClickErr error

	mu     sync.Mutex
	clicks int
	filled string
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Filled returns the last value filled into the element.
func (e *Element) Filled() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filled
}

// Driver is an in-memory browser.Driver.
type Driver struct {
	// ScreenshotData is returned by Screenshot.
	ScreenshotData []byte

	// Load, when set, builds the page for a URL without a registered page,
	// for example by fetching it through the launch proxy.
	Load func(ctx context.Context, url string) (*Page, error)

	// Errors injected into the matching calls.
	NavigateErr   map[string]error
	HTMLErr       error
	TitleErr      error
	ScreenshotErr error
	CloseErr      error

	mu       sync.Mutex
	pages    map[string]*Page
	current  *Page
	visited  []string
	console  []browser.ConsoleEntry
	closed   int
	waited   []string
	shotTook int
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver returns a Driver positioned on an empty page.
func NewDriver() *Driver {
	return &Driver{
		ScreenshotData: []byte("\x89PNG\r\n\x1a\nfake"),
		NavigateErr:    map[string]error{},
		pages:          map[string]*Page{},
		current:        &Page{Elements: map[string]*Element{}},
	}
}

// SetPage registers the page served for url.
func (d *Driver) SetPage(url string, p *Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.Elements == nil {
		p.Elements = map[string]*Element{}
	}
	d.pages[url] = p
}

// AddElement adds an element to the current page.
func (d *Driver) AddElement(selector string, e *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current.Elements[selector] = e
}

// RemoveElement removes an element from the current page.
func (d *Driver) RemoveElement(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.current.Elements, selector)
}

// AddConsole appends a console entry.
func (d *Driver) AddConsole(level, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.console = append(d.console, browser.ConsoleEntry{Level: level, Message: message, Time: time.Now()})
}

// Visited returns the navigated URLs in order.
func (d *Driver) Visited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visited...)
}

// Waited returns the selectors passed to WaitFor in order.
func (d *Driver) Waited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.waited...)
}

// CloseCalls returns how many times Close was called.
func (d *Driver) CloseCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Screenshots returns how many screenshots were taken.
func (d *Driver) Screenshots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shotTook
}

// Navigate implements browser.Driver. Unknown URLs go to Load, or load an
// empty page without it.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.visited = append(d.visited, url)
	if err := d.NavigateErr[url]; err != nil {
		d.mu.Unlock()
		return err
	}
	p, ok := d.pages[url]
	load := d.Load
	d.mu.Unlock()

	if !ok {
		p = &Page{}
		if load != nil {
			var err error
			if p, err = load(ctx, url); err != nil {
				return err
			}
		}
	}
	if p == nil {
		p = &Page{}
	}
	if p.Elements == nil {
		p.Elements = map[string]*Element{}
	}

	d.mu.Lock()
	d.current = p
	d.mu.Unlock()
	return nil
}

// WaitFor implements browser.Driver.
func (d *Driver) WaitFor(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.waited = append(d.waited, selector)
	e, ok := d.current.Elements[selector]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s after %s", browser.ErrWaitTimeout, selector, timeout)
	}
	return &element{driver: d, e: e}, nil
}

// Find implements browser.Driver.
func (d *Driver) Find(ctx context.Context, selector string) (browser.Lookup, error) {
	if err := ctx.Err(); err != nil {
		return browser.NotFound(), err
	}
	d.mu.Lock()
	e, ok := d.current.Elements[selector]
	d.mu.Unlock()

	if !ok {
		return browser.NotFound(), nil
	}
	return browser.Found(&element{driver: d, e: e}), nil
}

// HTML implements browser.Driver.
func (d *Driver) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.HTMLErr != nil {
		return "", d.HTMLErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.HTML, nil
}

// Title implements browser.Driver.
func (d *Driver) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.TitleErr != nil {
		return "", d.TitleErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Title, nil
}

// Screenshot implements browser.Driver.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shotTook++
	return append([]byte(nil), d.ScreenshotData...), nil
}

// ConsoleLogs implements browser.Driver.
func (d *Driver) ConsoleLogs() []browser.ConsoleEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.ConsoleEntry(nil), d.console...)
}

// Close implements browser.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return d.CloseErr
}

type element struct {
	driver *Driver
	e      *Element
}

func (el *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if el.e.ClickErr != nil {
		return el.e.ClickErr
	}
	el.e.mu.Lock()
	el.e.clicks++
	onClick := el.e.OnClick
	el.e.mu.Unlock()

	if onClick != nil {
		onClick(el.driver)
	}
	return nil
}

func (el *element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el.e.mu.Lock()
	defer el.e.mu.Unlock()
	el.e.filled = value
	return nil
}

func (el *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el.e.mu.Lock()
	defer el.e.mu.Unlock()
	return el.e.Text, nil
}

// Launcher is a browser.Launcher returning a fixed Driver.
type Launcher struct {
	Driver *Driver
	Err    error

	mu    sync.Mutex
	specs []browser.LaunchSpec
}

var _ browser.Launcher = (*Launcher)(nil)

// Launch implements browser.Launcher.
func (l *Launcher) Launch(ctx context.Context, spec browser.LaunchSpec) (browser.Driver, error) {
	l.mu.Lock()
	l.specs = append(l.specs, spec)
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Driver, nil
}

// Specs returns the launch specs received so far.
func (l *Launcher) Specs() []browser.LaunchSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchSpec(nil), l.specs...)
}
