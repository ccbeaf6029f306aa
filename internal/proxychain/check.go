package proxychain

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// checkEndpointTimeout bounds the local handshake check. The endpoint is on
// the loopback interface, so anything slower means it is broken.
const checkEndpointTimeout = 2 * time.Second

// CheckEndpoint verifies that addr completes a SOCKS5 greeting without authentication.
// Only the greeting is exchanged: a CONNECT would reach the upstream and
// make the check depend on the remote network.
func CheckEndpoint(ctx context.Context, addr string) EndpointStatus {
	ctx, cancel := context.WithTimeout(ctx, checkEndpointTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return EndpointTimeout
		}
		return EndpointCannotConnect
	}
	defer conn.Close() //nolint:errcheck // check connection

	if err := conn.SetDeadline(time.Now().Add(checkEndpointTimeout)); err != nil {
		return EndpointCannotConnect
	}

	// Client sends: version + number of methods + "no authentication"
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return EndpointCannotConnect
	}

	// Server responds: version + selected method
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return EndpointTimeout
		}
		return EndpointWrongType
	}
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return EndpointWrongType
	}
	return EndpointOK
}
