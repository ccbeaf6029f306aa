package model

import "time"

// RunRecord is the persisted summary of one process run.
type RunRecord struct {
	ID         string      `json:"id"`
	User       string      `json:"user"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Outcome    Outcome     `json:"outcome"`
	Failure    FailureKind `json:"failure,omitempty"`

	// Stage is the last pipeline stage that started.
	Stage string `json:"stage,omitempty"`

	// Message is the error message or status text.
	Message string `json:"message,omitempty"`

	// Proxy is the configured proxy with credentials removed, empty without proxy.
	Proxy string `json:"proxy,omitempty"`

	// ExtensionChecksum is the md5 of the package used by the run.
	ExtensionChecksum string `json:"extension_checksum,omitempty"`

	// Artifacts lists the files written by the run.
	Artifacts []string `json:"artifacts,omitempty"`
}

// Finished reports whether the run has ended.
func (r *RunRecord) Finished() bool {
	return r.Outcome != OutcomeRunning && r.Outcome != ""
}

// Duration returns how long the run lasted, or zero if it has not finished.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
