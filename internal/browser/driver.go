package browser

import (
	"context"
	"strings"
	"time"
)

// Driver is the page-level contract the flows are written against.
// Every call checks ctx before touching the browser. Waits are bounded by
// their timeout argument; other calls by the driver's default timeout.
type Driver interface {
	// Navigate loads url in the current page.
	Navigate(ctx context.Context, url string) error

	// WaitFor blocks until an element matching selector is attached to the
	// DOM and returns it. It returns an error wrapping ErrWaitTimeout when
	// the element does not appear within timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// Find looks for selector once, without waiting. An absent element is
	// reported through the Lookup, not as an error.
	Find(ctx context.Context, selector string) (Lookup, error)

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// Title returns the title of the current page.
	Title(ctx context.Context) (string, error)

	// Screenshot returns a full-page PNG screenshot.
	Screenshot(ctx context.Context) ([]byte, error)

	// ConsoleLogs returns the browser console entries collected so far.
	ConsoleLogs() []ConsoleEntry

	// Close terminates the browser process.
	Close() error
}

// Element is a located DOM element.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Text(ctx context.Context) (string, error)
}

// Lookup is the result of Driver.Find: either a found element or nothing.
type Lookup struct {
	element Element
}

// Found returns a Lookup holding e.
func Found(e Element) Lookup {
	return Lookup{element: e}
}

// NotFound returns an empty Lookup.
func NotFound() Lookup {
	return Lookup{}
}

// Element returns the element and whether one was found.
func (l Lookup) Element() (Element, bool) {
	return l.element, l.element != nil
}

// Found reports whether the lookup matched an element.
func (l Lookup) Found() bool {
	return l.element != nil
}

// ConsoleEntry is one browser console message.
type ConsoleEntry struct {
	// Level is the console message type as reported by the browser
	// ("log", "warning", "error", ...).
	Level   string
	Message string
	Time    time.Time
}

// String formats the entry as "LEVEL: message".
func (e ConsoleEntry) String() string {
	return strings.ToUpper(e.Level) + ": " + e.Message
}

// FormatConsole joins entries one per line.
func FormatConsole(entries []ConsoleEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "\n")
}

// LaunchSpec is everything a Launcher needs to start the browser.
type LaunchSpec struct {
	// ExtensionDir is the unpacked extension loaded into the profile.
	ExtensionDir string

	// UserDataDir is the profile directory. Empty means a temporary profile.
	UserDataDir string

	// Args are the Chromium command-line switches.
	Args []string

	// ProxyServer is passed to the browser context as its proxy, empty for none.
	ProxyServer string

	UserAgent string

	// Timeout bounds the browser start.
	Timeout time.Duration

	// DefaultTimeout bounds every driver call that has no explicit timeout.
	DefaultTimeout time.Duration
}

// Launcher starts a browser and returns a Driver for its page.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Driver, error)
}
