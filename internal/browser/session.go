package browser

import (
	"sync"

	"github.com/nao1215/gradientbot/internal/model"
)

// Session is the single browser session of a run.
// A Session exists only once the browser is running, so it starts in
// SessionLaunched. Only the flow that currently owns it mutates it.
type Session struct {
	driver      Driver
	proxy       *model.ProxyConfig
	extensionID string

	mu    sync.Mutex
	state model.SessionState

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps a running driver. proxy may be nil.
func NewSession(driver Driver, extensionID string, proxy *model.ProxyConfig) *Session {
	return &Session{
		driver:      driver,
		proxy:       proxy,
		extensionID: extensionID,
		state:       model.SessionLaunched,
	}
}

// Driver returns the page driver.
func (s *Session) Driver() Driver {
	return s.driver
}

// ExtensionID returns the ID the loaded extension runs under.
func (s *Session) ExtensionID() string {
	return s.extensionID
}

// Proxy returns the proxy the session is routed through, or nil.
func (s *Session) Proxy() *model.ProxyConfig {
	return s.proxy
}

// State returns the current lifecycle state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next. It returns a *model.TransitionError
// when the lifecycle does not allow the edge.
func (s *Session) Transition(next model.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanTransition(next) {
		return &model.TransitionError{From: s.state, To: next}
	}
	s.state = next
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.State() == model.SessionTerminated
}

// Close terminates the browser and moves the session to SessionTerminated.
// It is safe to call more than once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = model.SessionTerminated
		s.mu.Unlock()

		s.closeErr = s.driver.Close()
	})
	return s.closeErr
}
