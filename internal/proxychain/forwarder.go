package proxychain

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeIPv4  = 0x01
	socks5AddrTypeDomID = 0x03
	socks5AddrTypeIPv6  = 0x04

	socks5ReplySucceeded       = 0x00
	socks5ReplyGeneralFailure  = 0x01
	socks5ReplyHostUnreachable = 0x04
	socks5ReplyCmdUnsupported  = 0x07
	socks5ReplyAddrUnsupported = 0x08
)

// defaultDialTimeout bounds each upstream dial.
const defaultDialTimeout = 30 * time.Second

// hopHeaders are removed before a plain HTTP request is relayed.
var hopHeaders = []string{
	"Proxy-Authorization",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Keep-Alive",
	"Te",
	"Trailer",
	"Upgrade",
}

// Forwarder is a local proxy relaying every connection through the upstream.
// It accepts HTTP proxy requests (CONNECT and absolute-URI requests) and
// SOCKS5 CONNECT on the same port.
type Forwarder struct {
	listener net.Listener
	dialer   ContextDialer
	upstream string
	logger   *slog.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithForwarderLogger sets the logger used for relay errors.
func WithForwarderLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithDialTimeout sets the upstream dial timeout.
func WithDialTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		f.timeout = d
	}
}

// withDialer replaces the upstream dialer.
func withDialer(d ContextDialer) ForwarderOption {
	return func(f *Forwarder) {
		f.dialer = d
	}
}

// Anonymize starts a Forwarder on 127.0.0.1 with an OS-assigned port that
// relays through upstream. upstream must already be normalized.
// ctx bounds only the setup. The forwarder serves until Close is called,
// so it outlives the call that started it.
func Anonymize(ctx context.Context, upstream string, opts ...ForwarderOption) (*Forwarder, error) {
	u, err := ParseUpstream(upstream)
	if err != nil {
		return nil, err
	}

	f := &Forwarder{
		upstream: Redact(u.String()),
		logger:   slog.Default(),
		timeout:  defaultDialTimeout,
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.dialer == nil {
		if f.dialer, err = newUpstreamDialer(u, f.timeout); err != nil {
			return nil, err
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	f.listener = listener
	f.ctx, f.cancel = context.WithCancel(context.WithoutCancel(ctx))

	f.wg.Add(1)
	go f.serve()

	return f, nil
}

// Addr returns the "host:port" of the local endpoint.
func (f *Forwarder) Addr() string {
	return f.listener.Addr().String()
}

// URL returns the local endpoint as an HTTP proxy URL.
func (f *Forwarder) URL() string {
	return "http://" + f.Addr()
}

// SOCKSURL returns the local endpoint as a SOCKS5 proxy URL.
func (f *Forwarder) SOCKSURL() string {
	return "socks5://" + f.Addr()
}

// Upstream returns the upstream address with the password redacted.
func (f *Forwarder) Upstream() string {
	return f.upstream
}

// Close stops accepting connections, closes the active ones and waits for
// every relay goroutine to return. It is safe to call more than once.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for c := range f.conns {
		_ = c.Close()
	}
	f.mu.Unlock()

	f.cancel()
	err := f.listener.Close()
	f.wg.Wait()
	return err
}

func (f *Forwarder) serve() {
	defer f.wg.Done()
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				f.logger.Warn("forwarder accept failed", "error", err)
			}
			return
		}
		if !f.track(conn) {
			_ = conn.Close()
			return
		}
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			defer f.untrack(conn)
			f.handle(conn)
		}()
	}
}

func (f *Forwarder) track(c net.Conn) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.conns[c] = struct{}{}
	return true
}

func (f *Forwarder) untrack(c net.Conn) {
	f.mu.Lock()
	delete(f.conns, c)
	f.mu.Unlock()
	_ = c.Close()
}

// handle sniffs the first byte: SOCKS5 greetings start with 0x05, HTTP
// requests with an ASCII method name.
func (f *Forwarder) handle(conn net.Conn) {
	br := bufio.NewReader(conn)
	first, err := br.Peek(1)
	if err != nil {
		return
	}
	if first[0] == socks5Version {
		f.serveSOCKS5(conn, br)
		return
	}
	f.serveHTTP(conn, br)
}

func (f *Forwarder) dial(target string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()
	upstream, err := f.dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		f.logger.Debug("upstream dial failed", "target", target, "error", err)
		return nil, err
	}
	if !f.track(upstream) {
		_ = upstream.Close()
		return nil, net.ErrClosed
	}
	return upstream, nil
}

func (f *Forwarder) serveSOCKS5(conn net.Conn, br *bufio.Reader) {
	// Greeting: version, method count, methods
	header := make([]byte, 2)
	if _, err := io.ReadFull(br, header); err != nil {
		return
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(br, methods); err != nil {
		return
	}
	acceptsNone := false
	for _, m := range methods {
		if m == socks5AuthNone {
			acceptsNone = true
		}
	}
	if !acceptsNone {
		_, _ = conn.Write([]byte{socks5Version, socks5AuthNoAccept})
		return
	}
	if _, err := conn.Write([]byte{socks5Version, socks5AuthNone}); err != nil {
		return
	}

	// Request: version, command, reserved, address type
	req := make([]byte, 4)
	if _, err := io.ReadFull(br, req); err != nil {
		return
	}
	if req[0] != socks5Version {
		writeSOCKS5Reply(conn, socks5ReplyGeneralFailure)
		return
	}
	if req[1] != socks5CmdConnect {
		writeSOCKS5Reply(conn, socks5ReplyCmdUnsupported)
		return
	}

	var host string
	switch req[3] {
	case socks5AddrTypeIPv4, socks5AddrTypeIPv6:
		size := net.IPv4len
		if req[3] == socks5AddrTypeIPv6 {
			size = net.IPv6len
		}
		ip := make([]byte, size)
		if _, err := io.ReadFull(br, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case socks5AddrTypeDomID:
		length, err := br.ReadByte()
		if err != nil {
			return
		}
		name := make([]byte, length)
		if _, err := io.ReadFull(br, name); err != nil {
			return
		}
		host = string(name)
	default:
		writeSOCKS5Reply(conn, socks5ReplyAddrUnsupported)
		return
	}
	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(br, portBytes); err != nil {
		return
	}
	port := binary.BigEndian.Uint16(portBytes)
	target := net.JoinHostPort(host, strconv.Itoa(int(port)))

	upstream, err := f.dial(target)
	if err != nil {
		writeSOCKS5Reply(conn, socks5ReplyHostUnreachable)
		return
	}
	defer f.untrack(upstream)

	writeSOCKS5Reply(conn, socks5ReplySucceeded)
	relay(conn, br, upstream)
}

// writeSOCKS5Reply sends a reply with an unspecified IPv4 bound address.
func writeSOCKS5Reply(conn net.Conn, code byte) {
	_, _ = conn.Write([]byte{socks5Version, code, 0x00, socks5AddrTypeIPv4, 0, 0, 0, 0, 0, 0})
}

func (f *Forwarder) serveHTTP(conn net.Conn, br *bufio.Reader) {
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}

	if req.Method == http.MethodConnect {
		upstream, err := f.dial(req.Host)
		if err != nil {
			_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\nConnection: close\r\n\r\n")
			return
		}
		defer f.untrack(upstream)
		if _, err := io.WriteString(conn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
			return
		}
		relay(conn, br, upstream)
		return
	}

	if req.URL.Host == "" {
		_, _ = io.WriteString(conn, "HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\n")
		return
	}
	target := req.URL.Host
	if req.URL.Port() == "" {
		target = net.JoinHostPort(req.URL.Hostname(), "80")
	}
	upstream, err := f.dial(target)
	if err != nil {
		_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\nConnection: close\r\n\r\n")
		return
	}
	defer f.untrack(upstream)

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	// One request per connection keeps the relay a plain byte copy.
	req.Close = true
	if err := req.Write(upstream); err != nil {
		return
	}
	_, _ = io.Copy(conn, upstream)
}

// relay copies in both directions until either side closes.
// Bytes already buffered in br are sent before the rest of client.
func relay(client net.Conn, br *bufio.Reader, upstream net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, br)
		closeWrite(upstream)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(client, upstream)
		closeWrite(client)
		done <- struct{}{}
	}()
	<-done
	<-done
}

type writeCloser interface {
	CloseWrite() error
}

// closeWrite half-closes c when the connection type supports it. Other
// connections stay open until the opposite direction finishes.
func closeWrite(c net.Conn) {
	if wc, ok := c.(writeCloser); ok {
		_ = wc.CloseWrite()
	}
}
