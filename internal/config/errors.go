package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrMissingCredentials is returned when APP_USER or APP_PASS is not set.
	ErrMissingCredentials = errors.New("missing credentials: set APP_USER and APP_PASS")

	// ErrEmptyWorkDir is returned when the artifact directory is empty.
	ErrEmptyWorkDir = errors.New("invalid work directory: must not be empty")

	// ErrEmptyExtensionID is returned when no extension ID is configured.
	ErrEmptyExtensionID = errors.New("invalid extension id: must not be empty")

	// ErrInvalidWaitTimeout is returned when the UI wait bound is not positive.
	ErrInvalidWaitTimeout = errors.New("invalid wait timeout: must be positive")

	// ErrInvalidProbeInterval is returned when the liveness interval is not positive.
	ErrInvalidProbeInterval = errors.New("invalid probe interval: must be positive")

	// ErrInvalidFlushDelay is returned when the flush delay is negative.
	ErrInvalidFlushDelay = errors.New("invalid flush delay: must be non-negative")

	// ErrConflictingProxySources is returned when both PROXY and --tor are set.
	ErrConflictingProxySources = errors.New("conflicting proxy sources: PROXY and --tor cannot be used together")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrIncompleteDashboard is returned when a dashboard URL, selector or phrase is empty.
	ErrIncompleteDashboard = errors.New("incomplete dashboard configuration")
)
