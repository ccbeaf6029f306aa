package proxychain

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"testing"
)

// fakeConnectProxy is an HTTP CONNECT proxy recording the credentials it receives.
type fakeConnectProxy struct {
	listener net.Listener
	wantAuth string

	mu       sync.Mutex
	auths    []string
	requests int
}

func newFakeConnectProxy(t *testing.T, user, password string) *fakeConnectProxy {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start fake proxy: %v", err)
	}
	p := &fakeConnectProxy{listener: listener}
	if user != "" {
		p.wantAuth = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
	}
	go p.serve()
	t.Cleanup(func() { _ = listener.Close() })
	return p
}

func (p *fakeConnectProxy) Addr() string {
	return p.listener.Addr().String()
}

func (p *fakeConnectProxy) Auths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.auths...)
}

func (p *fakeConnectProxy) serve() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *fakeConnectProxy) handle(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil || req.Method != http.MethodConnect {
		return
	}
	auth := req.Header.Get("Proxy-Authorization")
	p.mu.Lock()
	p.auths = append(p.auths, auth)
	p.requests++
	p.mu.Unlock()

	if p.wantAuth != "" && auth != p.wantAuth {
		_, _ = io.WriteString(conn, "HTTP/1.1 407 Proxy Authentication Required\r\n\r\n")
		return
	}

	target, err := net.Dial("tcp", req.Host) //nolint:noctx // test code
	if err != nil {
		_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		return
	}
	defer target.Close()

	_, _ = io.WriteString(conn, "HTTP/1.1 200 Connection Established\r\n\r\n")
	pipe(conn, br, target)
}

// fakeSOCKS5Proxy is a SOCKS5 server supporting username/password authentication.
type fakeSOCKS5Proxy struct {
	listener net.Listener
	user     string
	password string

	mu      sync.Mutex
	targets []string
}

func newFakeSOCKS5Proxy(t *testing.T, user, password string) *fakeSOCKS5Proxy {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start fake proxy: %v", err)
	}
	p := &fakeSOCKS5Proxy{listener: listener, user: user, password: password}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go p.handle(conn)
		}
	}()
	t.Cleanup(func() { _ = listener.Close() })
	return p
}

func (p *fakeSOCKS5Proxy) Addr() string {
	return p.listener.Addr().String()
}

func (p *fakeSOCKS5Proxy) Targets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.targets...)
}

func (p *fakeSOCKS5Proxy) handle(conn net.Conn) {
	defer conn.Close()
	br := bufio.NewReader(conn)

	header := make([]byte, 2)
	if _, err := io.ReadFull(br, header); err != nil {
		return
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(br, methods); err != nil {
		return
	}

	if p.user != "" {
		_, _ = conn.Write([]byte{0x05, 0x02})
		// RFC 1929: version, user length, user, password length, password
		ver, _ := br.ReadByte()
		ulen, _ := br.ReadByte()
		user := make([]byte, ulen)
		_, _ = io.ReadFull(br, user)
		plen, _ := br.ReadByte()
		password := make([]byte, plen)
		_, _ = io.ReadFull(br, password)
		if ver != 0x01 || string(user) != p.user || string(password) != p.password {
			_, _ = conn.Write([]byte{0x01, 0x01})
			return
		}
		_, _ = conn.Write([]byte{0x01, 0x00})
	} else {
		_, _ = conn.Write([]byte{0x05, 0x00})
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(br, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		_, _ = io.ReadFull(br, ip)
		host = net.IP(ip).String()
	case 0x03:
		l, _ := br.ReadByte()
		name := make([]byte, l)
		_, _ = io.ReadFull(br, name)
		host = string(name)
	default:
		return
	}
	portBytes := make([]byte, 2)
	_, _ = io.ReadFull(br, portBytes)
	target := net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(portBytes))))

	p.mu.Lock()
	p.targets = append(p.targets, target)
	p.mu.Unlock()

	upstream, err := net.Dial("tcp", target) //nolint:noctx // test code
	if err != nil {
		_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()
	_, _ = conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	pipe(conn, br, upstream)
}

func pipe(client net.Conn, br *bufio.Reader, upstream net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, br)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(client, upstream)
		done <- struct{}{}
	}()
	<-done
}
