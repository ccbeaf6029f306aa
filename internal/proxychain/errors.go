package proxychain

import "errors"

var (
	// ErrProvision is returned when the forwarding endpoint cannot be created
	// or is unusable. It is fatal to the run.
	ErrProvision = errors.New("proxy provisioning failed")

	// ErrUnsupportedScheme is returned for upstream schemes other than
	// http, https, socks5, socks5h and socks.
	ErrUnsupportedScheme = errors.New("unsupported proxy scheme")

	// ErrInvalidAddress is returned when the upstream address cannot be parsed
	// or has no host.
	ErrInvalidAddress = errors.New("invalid proxy address")

	// ErrUpstreamRefused is returned when the upstream proxy rejects a CONNECT request.
	ErrUpstreamRefused = errors.New("upstream proxy refused the connection")

	// ErrEndpointUnusable is returned when the local endpoint does not answer
	// a SOCKS5 handshake.
	ErrEndpointUnusable = errors.New("forwarding endpoint is unusable")
)

// EndpointStatus is the result of checking the local forwarding endpoint.
type EndpointStatus int

const (
	// EndpointOK means the endpoint completed the SOCKS5 handshake.
	EndpointOK EndpointStatus = iota

	// EndpointWrongType means the endpoint answered but not as a SOCKS5 proxy.
	EndpointWrongType

	// EndpointCannotConnect means no TCP connection could be established.
	EndpointCannotConnect

	// EndpointTimeout means the handshake did not finish in time.
	EndpointTimeout
)

// String returns a human-readable description of the status.
func (s EndpointStatus) String() string {
	switch s {
	case EndpointOK:
		return "OK"
	case EndpointWrongType:
		return "wrong type (not SOCKS5)"
	case EndpointCannotConnect:
		return "cannot connect"
	case EndpointTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns nil for EndpointOK and an error wrapping ErrEndpointUnusable otherwise.
func (s EndpointStatus) Err() error {
	if s == EndpointOK {
		return nil
	}
	return &endpointError{status: s}
}

type endpointError struct {
	status EndpointStatus
}

func (e *endpointError) Error() string {
	return ErrEndpointUnusable.Error() + ": " + e.status.String()
}

func (e *endpointError) Unwrap() error {
	return ErrEndpointUnusable
}
