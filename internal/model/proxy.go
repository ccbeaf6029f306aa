package model

import "net"

// ProxyConfig describes the proxy a session is routed through.
// A nil *ProxyConfig means the session runs without a proxy.
type ProxyConfig struct {
	// Raw is the address exactly as it was configured.
	Raw string `json:"-"`

	// Normalized is Raw with a scheme guaranteed to be present.
	Normalized string `json:"-"`

	// Scheme is the upstream scheme (http, https, socks5, ...).
	Scheme string `json:"scheme"`

	// Endpoint is the local anonymized forwarding endpoint, e.g. "http://127.0.0.1:41233".
	Endpoint string `json:"endpoint"`

	// SOCKSEndpoint is the same local endpoint addressed as a SOCKS5 proxy.
	SOCKSEndpoint string `json:"socks_endpoint"`

	// Host and Port are extracted from Endpoint.
	Host string `json:"host"`
	Port string `json:"port"`
}

// HostPort returns the "host:port" form of the local endpoint.
func (p *ProxyConfig) HostPort() string {
	return net.JoinHostPort(p.Host, p.Port)
}
