package browser

import "errors"

var (
	// ErrLaunch is returned when the browser process cannot be started
	// with the extension loaded.
	ErrLaunch = errors.New("browser launch failed")

	// ErrProxyHealthCheck is returned when the IP echo page cannot be
	// loaded through the configured proxy.
	ErrProxyHealthCheck = errors.New("proxy health check failed")

	// ErrWaitTimeout is returned by Driver.WaitFor when the element does not
	// appear within the timeout.
	ErrWaitTimeout = errors.New("timed out waiting for element")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("browser session closed")
)
