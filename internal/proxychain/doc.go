// Package proxychain turns a configured upstream proxy into a local,
// credential-free forwarding endpoint the browser can use.
//
// Chromium cannot authenticate against a proxy from the command line, so the
// upstream address (which may carry "user:pass@") is never handed to the
// browser. Instead a Forwarder listens on 127.0.0.1 and relays every
// connection through the upstream using its credentials. The same port
// speaks both HTTP proxy and SOCKS5, which lets the browser be pointed at it
// with either an http:// or a socks5:// proxy URL.
//
// Supported upstream schemes:
//   - http, https: HTTP CONNECT with Proxy-Authorization
//   - socks5, socks5h, socks: SOCKS5 via golang.org/x/net/proxy
//
// An embedded Tor daemon (tornago) can serve as the upstream when no proxy
// address is configured.
package proxychain
