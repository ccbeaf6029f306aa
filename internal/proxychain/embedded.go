package proxychain

import (
	"context"
	"time"

	"github.com/nao1215/tornago"
)

// EmbeddedTor runs a private Tor daemon whose SOCKS port serves as the upstream proxy.
//
// Starting the daemon takes one to three minutes: it has to fetch the
// directory consensus and build the first circuits before the SOCKS port
// accepts connections.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// NewEmbeddedTor creates a new embedded Tor manager.
// Call Start to launch the daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has bootstrapped.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return err
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return err
	}

	// StartTorDaemon does not take a context; honour a cancellation that
	// arrived while it was bootstrapping.
	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return ctx.Err()
	default:
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the daemon down. It is safe to call on a stopped instance.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}

// IsRunning returns true if the daemon is running.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// ProxyAddress returns the SOCKS port as an upstream address for Provision,
// or an empty string when the daemon is not running.
func (e *EmbeddedTor) ProxyAddress() string {
	if !e.IsRunning() {
		return ""
	}
	return "socks5h://" + e.socksAddr
}
