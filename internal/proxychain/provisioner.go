package proxychain

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/gradientbot/internal/model"
)

// Provisioner turns the configured proxy address into a local forwarding endpoint.
// It owns the Forwarder it starts; Close stops it.
type Provisioner struct {
	logger      *slog.Logger
	dialTimeout time.Duration
	dialer      ContextDialer

	mu        sync.Mutex
	forwarder *Forwarder
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithUpstreamDialTimeout sets the dial timeout used by the forwarder.
func WithUpstreamDialTimeout(d time.Duration) ProvisionerOption {
	return func(p *Provisioner) {
		p.dialTimeout = d
	}
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		logger:      slog.Default(),
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision returns nil without error when raw is empty. Otherwise it
// normalizes raw once, starts the forwarder and checks the local endpoint.
// The forwarder keeps serving after ctx ends, until Close.
// Every failure wraps ErrProvision.
func (p *Provisioner) Provision(ctx context.Context, raw string) (*model.ProxyConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		p.logger.Info("no proxy configured")
		return nil, nil //nolint:nilnil // absence of a proxy is a valid result
	}

	normalized := Normalize(raw)
	opts := []ForwarderOption{
		WithForwarderLogger(p.logger),
		WithDialTimeout(p.dialTimeout),
	}
	if p.dialer != nil {
		opts = append(opts, withDialer(p.dialer))
	}

	f, err := Anonymize(ctx, normalized, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvision, err)
	}

	cfg, err := describe(raw, normalized, f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrProvision, err)
	}
	if err := CheckEndpoint(ctx, f.Addr()).Err(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrProvision, err)
	}

	p.mu.Lock()
	p.forwarder = f
	p.mu.Unlock()

	p.logger.Info("proxy ready",
		"upstream", f.Upstream(),
		"endpoint", cfg.Endpoint,
		"socks", cfg.SOCKSEndpoint,
	)
	return cfg, nil
}

// describe extracts host and port from the forwarder endpoint.
func describe(raw, normalized string, f *Forwarder) (*model.ProxyConfig, error) {
	endpoint, err := url.Parse(f.URL())
	if err != nil {
		return nil, err
	}
	host, port := endpoint.Hostname(), endpoint.Port()
	if host == "" || port == "" {
		return nil, fmt.Errorf("%w: endpoint %q has no host or port", ErrEndpointUnusable, f.URL())
	}
	scheme, _, _ := strings.Cut(normalized, "://")
	return &model.ProxyConfig{
		Raw:           raw,
		Normalized:    normalized,
		Scheme:        strings.ToLower(scheme),
		Endpoint:      f.URL(),
		SOCKSEndpoint: f.SOCKSURL(),
		Host:          host,
		Port:          port,
	}, nil
}

// Close stops the forwarder, if one was started.
func (p *Provisioner) Close() error {
	p.mu.Lock()
	f := p.forwarder
	p.forwarder = nil
	p.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}
