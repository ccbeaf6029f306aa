package proxychain

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ContextDialer opens connections to a target through the upstream proxy.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// newUpstreamDialer returns the dialer for the scheme of upstream.
func newUpstreamDialer(upstream *url.URL, timeout time.Duration) (ContextDialer, error) {
	base := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	switch upstream.Scheme {
	case "socks", "socks5", "socks5h":
		var auth *proxy.Auth
		if upstream.User != nil {
			password, _ := upstream.User.Password()
			auth = &proxy.Auth{User: upstream.User.Username(), Password: password}
		}
		d, err := proxy.SOCKS5("tcp", upstream.Host, auth, base)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd, nil
		}
		return &contextWrapper{dialer: d}, nil
	case "http", "https":
		return &connectDialer{
			proxyAddr: upstream.Host,
			useTLS:    upstream.Scheme == "https",
			authValue: basicAuth(upstream.User),
			base:      base,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, upstream.Scheme)
	}
}

func basicAuth(user *url.Userinfo) string {
	if user == nil {
		return ""
	}
	password, _ := user.Password()
	creds := user.Username() + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// contextWrapper adds context support to a proxy.Dialer.
// If the context is cancelled the dial keeps running in the background and
// its connection, if any, is closed.
type contextWrapper struct {
	dialer proxy.Dialer
}

func (w *contextWrapper) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := w.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if result := <-resultCh; result.conn != nil {
				_ = result.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// connectDialer tunnels through an HTTP proxy with the CONNECT method.
type connectDialer struct {
	proxyAddr string
	useTLS    bool
	authValue string
	base      *net.Dialer
}

func (d *connectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.base.DialContext(ctx, network, d.proxyAddr)
	if err != nil {
		return nil, err
	}
	if d.useTLS {
		host, _, _ := net.SplitHostPort(d.proxyAddr)
		tlsConn := tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if d.authValue != "" {
		req.Header.Set("Proxy-Authorization", d.authValue)
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrUpstreamRefused, resp.Status)
	}

	_ = conn.SetDeadline(time.Time{})
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn drains bytes read ahead by a bufio.Reader before reading from Conn.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *bufferedConn) CloseWrite() error {
	if wc, ok := c.Conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}
