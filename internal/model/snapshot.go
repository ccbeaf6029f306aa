package model

import "time"

// Checkpoint names the moment a StatusSnapshot was taken.
// The checkpoint name is also the artifact file stem.
type Checkpoint string

const (
	// CheckpointPreLogin is taken on the dashboard before credentials are entered.
	CheckpointPreLogin Checkpoint = "login-page"

	// CheckpointPostLogin is taken once the post-login marker appeared.
	CheckpointPostLogin Checkpoint = "login"

	// CheckpointPostVerification is taken after the extension UI was checked.
	CheckpointPostVerification Checkpoint = "extension"

	// CheckpointStatus is taken after the status indicator was read.
	CheckpointStatus Checkpoint = "status"

	// CheckpointConnected is taken right before supervision starts.
	CheckpointConnected Checkpoint = "connected"
)

// StatusSnapshot is an observational capture of the page at a checkpoint.
// The orchestrator never reads snapshots back; they exist for diagnosis.
type StatusSnapshot struct {
	Checkpoint Checkpoint `json:"checkpoint"`

	// Screenshot is the PNG screenshot, nil if the capture failed.
	Screenshot []byte `json:"-"`

	// DOM is the rendered page HTML.
	DOM string `json:"-"`

	// DOMText is the visible text extracted from DOM.
	DOMText string `json:"dom_text,omitempty"`

	// StatusText is the status indicator text when known at this checkpoint.
	StatusText string `json:"status_text,omitempty"`

	// Files lists the artifact paths written for this snapshot.
	Files []string `json:"files,omitempty"`

	CapturedAt time.Time `json:"captured_at"`
}

// ErrorReport holds the diagnostics captured for a fatal failure.
// It is produced at most once per run, right before the session terminates.
type ErrorReport struct {
	// Cause is the error message that triggered the report.
	Cause string `json:"cause"`

	// Screenshot is the PNG screenshot, nil if the capture failed.
	Screenshot []byte `json:"-"`

	// ConsoleLog is the browser console, one "LEVEL: message" line per entry.
	ConsoleLog string `json:"-"`

	// Stack is the stack trace text of the failure.
	Stack string `json:"-"`

	// Files lists the artifact paths that were written.
	Files []string `json:"files,omitempty"`

	// Errors lists the captures that failed.
	Errors []string `json:"errors,omitempty"`

	CapturedAt time.Time `json:"captured_at"`
}
