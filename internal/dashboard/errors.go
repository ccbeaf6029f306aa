package dashboard

import "errors"

var (
	// ErrLoginTimeout is returned when a login form element or the
	// post-login marker does not appear in time.
	ErrLoginTimeout = errors.New("login timed out")

	// ErrExtensionVerificationTimeout is returned when the extension popup
	// or its usage panel does not render in time.
	ErrExtensionVerificationTimeout = errors.New("extension verification timed out")

	// ErrStatusIndicatorMissing is returned when the usage panel rendered
	// without a status indicator.
	ErrStatusIndicatorMissing = errors.New("status indicator not found")
)
