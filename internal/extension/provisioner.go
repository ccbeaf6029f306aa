package extension

import (
	"context"
	"crypto/md5" //nolint:gosec // md5 is the checksum users compare against, not a security control
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/model"
)

// Provisioner obtains the extension package and keeps it fresh in the work directory.
type Provisioner struct {
	store       *artifact.Store
	fetcher     Fetcher
	urlTemplate string
	filename    string
	maxAge      time.Duration
	debug       bool
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithFetcher sets the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Provisioner) {
		p.fetcher = f
	}
}

// WithURLTemplate sets the update URL. "{id}" is replaced with the extension ID.
func WithURLTemplate(tmpl string) Option {
	return func(p *Provisioner) {
		p.urlTemplate = tmpl
	}
}

// WithFilename sets the package file name inside the store.
func WithFilename(name string) Option {
	return func(p *Provisioner) {
		p.filename = name
	}
}

// WithMaxAge sets how long a downloaded package is reused.
func WithMaxAge(d time.Duration) Option {
	return func(p *Provisioner) {
		p.maxAge = d
	}
}

// WithDebug enables checksum logging.
func WithDebug(debug bool) Option {
	return func(p *Provisioner) {
		p.debug = debug
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithClock replaces time.Now for age computations.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) {
		p.now = now
	}
}

// NewProvisioner creates a Provisioner writing into store.
func NewProvisioner(store *artifact.Store, opts ...Option) *Provisioner {
	p := &Provisioner{
		store:       store,
		urlTemplate: config.DefaultExtensionURL,
		filename:    config.DefaultExtensionFilename,
		maxAge:      config.DefaultExtensionMaxAge,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = NewRestyFetcher(config.DefaultUserAgent, config.DefaultDownloadTimeout)
	}
	return p
}

// SourceURL returns the update URL for id.
func (p *Provisioner) SourceURL(id string) string {
	return strings.ReplaceAll(p.urlTemplate, "{id}", id)
}

// Ensure returns the package for id, downloading it only when the cached
// copy is missing or at least maxAge old.
func (p *Provisioner) Ensure(ctx context.Context, id string) (*model.ExtensionPackage, error) {
	path := p.store.Path(p.filename)
	sourceURL := p.SourceURL(id)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		age := p.now().Sub(info.ModTime())
		if age < p.maxAge {
			pkg, err := p.describe(id, sourceURL, path, true)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDownload, err)
			}
			p.logger.Info("using cached extension package",
				"path", path,
				"age", age.Round(time.Second).String(),
			)
			p.logChecksum(pkg)
			return pkg, nil
		}
		p.logger.Info("cached extension package expired", "path", path, "age", age.Round(time.Second).String())
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("downloading extension package", "extension_id", id)
	data, err := p.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if _, err := p.store.Write(p.filename, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	pkg, err := p.describe(id, sourceURL, path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	p.logger.Info("extension package downloaded", "path", path, "size", pkg.Size)
	p.logChecksum(pkg)
	return pkg, nil
}

// describe builds the ExtensionPackage of the file at path.
func (p *Provisioner) describe(id, sourceURL, path string, cached bool) (*model.ExtensionPackage, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the work directory
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	sum := md5.Sum(data) //nolint:gosec // see import
	return &model.ExtensionPackage{
		ID:        id,
		SourceURL: sourceURL,
		Path:      path,
		FetchedAt: info.ModTime(),
		Checksum:  hex.EncodeToString(sum[:]),
		Size:      info.Size(),
		Cached:    cached,
	}, nil
}

func (p *Provisioner) logChecksum(pkg *model.ExtensionPackage) {
	if !p.debug {
		return
	}
	p.logger.Info("extension package checksum", "md5", pkg.Checksum, "path", pkg.Path)
}
