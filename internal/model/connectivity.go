package model

// ConnectivityResult is the classified text of the extension status indicator.
type ConnectivityResult int

const (
	// ConnectivityUnknown means no classification has been made yet.
	ConnectivityUnknown ConnectivityResult = iota

	// Connected means the node is online; the run moves to supervision.
	Connected

	// Disconnected means the node is offline; the run is diagnosed and ends.
	Disconnected

	// RegionBlocked means the service refuses the egress region; the run ends
	// without diagnostics because there is nothing actionable to capture.
	RegionBlocked
)

// String returns the lowercase result name.
func (r ConnectivityResult) String() string {
	switch r {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case RegionBlocked:
		return "region_blocked"
	default:
		return "unknown"
	}
}

// SessionState maps the result onto the session lifecycle.
func (r ConnectivityResult) SessionState() SessionState {
	switch r {
	case Connected:
		return SessionConnected
	case Disconnected:
		return SessionDisconnected
	case RegionBlocked:
		return SessionRegionBlocked
	default:
		return SessionExtensionVerified
	}
}
