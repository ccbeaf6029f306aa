package model

// Outcome is how a process run ended.
type Outcome string

const (
	// OutcomeRunning marks a run that has not finished yet.
	OutcomeRunning Outcome = "running"

	// OutcomeConnected is a run that reached supervision and was stopped by a signal.
	OutcomeConnected Outcome = "connected"

	// OutcomeDisconnected is a run whose extension reported a disconnected node.
	OutcomeDisconnected Outcome = "disconnected"

	// OutcomeRegionBlocked is a run refused by the service for its region.
	OutcomeRegionBlocked Outcome = "region_blocked"

	// OutcomeFailed is a run aborted by a fatal stage error.
	OutcomeFailed Outcome = "failed"

	// OutcomeInterrupted is a run cancelled before reaching steady state.
	OutcomeInterrupted Outcome = "interrupted"
)

// ExitCode returns the process exit code for the outcome.
// Only a supervised session that was stopped externally exits cleanly.
func (o Outcome) ExitCode() int {
	if o == OutcomeConnected {
		return 0
	}
	return 1
}

// FailureKind classifies a fatal error.
type FailureKind string

const (
	FailureNone                         FailureKind = ""
	FailureDownload                     FailureKind = "download"
	FailureProxyProvision               FailureKind = "proxy_provision"
	FailureProxyHealthCheck             FailureKind = "proxy_health_check"
	FailureLaunch                       FailureKind = "launch"
	FailureLoginTimeout                 FailureKind = "login_timeout"
	FailureExtensionVerificationTimeout FailureKind = "extension_verification_timeout"
	FailureUnknown                      FailureKind = "unknown"
)
