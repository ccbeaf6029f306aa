package model

import "fmt"

// SessionState is the lifecycle state of the browser session.
type SessionState int

const (
	// SessionCreated is the state before the browser process exists.
	SessionCreated SessionState = iota

	// SessionLaunched means the browser is running with the extension loaded.
	SessionLaunched

	// SessionAuthenticated means the dashboard login succeeded.
	SessionAuthenticated

	// SessionExtensionVerified means the extension UI reported its status panel.
	SessionExtensionVerified

	// SessionConnected is the steady state handed to supervision.
	SessionConnected

	// SessionDisconnected means the extension reported a disconnected node.
	SessionDisconnected

	// SessionRegionBlocked means the service is not available in the egress region.
	SessionRegionBlocked

	// SessionTerminated means the browser process has been shut down.
	SessionTerminated
)

// String returns the lowercase state name.
func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionLaunched:
		return "launched"
	case SessionAuthenticated:
		return "authenticated"
	case SessionExtensionVerified:
		return "extension_verified"
	case SessionConnected:
		return "connected"
	case SessionDisconnected:
		return "disconnected"
	case SessionRegionBlocked:
		return "region_blocked"
	case SessionTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// sessionTransitions lists the forward edges of the lifecycle.
// Terminated is reachable from every state and is handled separately.
var sessionTransitions = map[SessionState][]SessionState{
	SessionCreated:           {SessionLaunched},
	SessionLaunched:          {SessionAuthenticated},
	SessionAuthenticated:     {SessionExtensionVerified, SessionRegionBlocked},
	SessionExtensionVerified: {SessionConnected, SessionDisconnected, SessionRegionBlocked},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s SessionState) CanTransition(next SessionState) bool {
	if s == SessionTerminated {
		return false
	}
	if next == SessionTerminated {
		return true
	}
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the automated flow.
func (s SessionState) Terminal() bool {
	switch s {
	case SessionConnected, SessionDisconnected, SessionRegionBlocked, SessionTerminated:
		return true
	default:
		return false
	}
}

// TransitionError is returned when a session is moved along an edge
// the lifecycle does not allow.
type TransitionError struct {
	From SessionState
	To   SessionState
}

// Error implements error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition: %s -> %s", e.From, e.To)
}
