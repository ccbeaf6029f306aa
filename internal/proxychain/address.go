package proxychain

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultScheme is prepended to addresses given without one.
const DefaultScheme = "http"

// defaultPorts are used when the upstream address has no port.
var defaultPorts = map[string]string{
	"http":    "80",
	"https":   "443",
	"socks":   "1080",
	"socks5":  "1080",
	"socks5h": "1080",
}

// Normalize trims raw and prepends "http://" when it has no scheme.
// Addresses that already contain "://" are returned unchanged apart from trimming.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return DefaultScheme + "://" + raw
}

// ParseUpstream parses a normalized proxy address and fills in the default port.
func ParseUpstream(normalized string) (*url.URL, error) {
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidAddress, Redact(normalized))
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u, nil
}

// Redact returns the address with its password replaced, for logs and history.
func Redact(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.User == nil {
		return address
	}
	return u.Redacted()
}
