package runner

import "errors"

var (
	// ErrUnknownFatal wraps stage errors outside the known failure taxonomy.
	ErrUnknownFatal = errors.New("unknown fatal error")

	// ErrDisconnected is the cause recorded when the extension reports a
	// disconnected node.
	ErrDisconnected = errors.New("extension reported a disconnected node")

	// ErrNoResult is returned when the pipeline ends without a status.
	ErrNoResult = errors.New("pipeline finished without a connectivity result")
)
