package runner

import (
	"context"
	"log/slog"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/config"
	"github.com/nao1215/gradientbot/internal/dashboard"
	"github.com/nao1215/gradientbot/internal/extension"
	"github.com/nao1215/gradientbot/internal/pipeline"
	"github.com/nao1215/gradientbot/internal/proxychain"
	"github.com/nao1215/gradientbot/internal/report"
	"github.com/nao1215/gradientbot/internal/supervisor"
)

// Wiring holds the replaceable collaborators of Build. Zero fields get the
// production implementation.
type Wiring struct {
	// Launcher starts the browser. Required.
	Launcher browser.Launcher

	Fetcher  extension.Fetcher
	Unpacker browser.UnpackFunc
	Logger   *slog.Logger
}

// Build assembles a Runner with the production components for cfg. All
// artifacts go to cfg.WorkDir.
func Build(cfg config.Config, w Wiring, opts ...Option) *Runner {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := artifact.NewStore(cfg.WorkDir)

	fetcher := w.Fetcher
	if fetcher == nil {
		fetcher = extension.NewRestyFetcher(cfg.UserAgent, cfg.DownloadTimeout)
	}
	extensions := extension.NewProvisioner(store,
		extension.WithFetcher(fetcher),
		extension.WithURLTemplate(cfg.ExtensionURL),
		extension.WithFilename(cfg.ExtensionFilename),
		extension.WithMaxAge(cfg.ExtensionMaxAge),
		extension.WithDebug(cfg.Debug),
		extension.WithLogger(logger),
	)
	proxies := proxychain.NewProvisioner(proxychain.WithLogger(logger))

	managerOpts := []browser.ManagerOption{browser.WithLogger(logger)}
	if w.Unpacker != nil {
		managerOpts = append(managerOpts, browser.WithUnpacker(w.Unpacker))
	}
	manager := browser.NewManager(w.Launcher, managerOpts...)

	snapshots := report.NewSnapshotter(store, report.WithLogger(logger))
	flowOpts := []dashboard.Option{
		dashboard.WithWaitTimeout(cfg.WaitTimeout),
		dashboard.WithSnapshotter(snapshots),
		dashboard.WithLogger(logger),
	}

	p := pipeline.Default(pipeline.Components{
		Extensions: extensions,
		Proxies:    proxies,
		Launcher:   manager,
		Login:      dashboard.NewLoginFlow(cfg.Dashboard, flowOpts...),
		Verifier:   dashboard.NewVerifier(cfg.Dashboard, store, flowOpts...),
		Checker:    dashboard.NewChecker(cfg.Dashboard, store, flowOpts...),
		Launch: browser.LaunchConfig{
			Headless:      cfg.Headless,
			Debug:         cfg.Debug,
			UserAgent:     cfg.UserAgent,
			WorkDir:       cfg.WorkDir,
			IPEchoURL:     cfg.Dashboard.IPEchoURL,
			WaitTimeout:   cfg.WaitTimeout,
			LaunchTimeout: cfg.LaunchTimeout,
		},
	}, pipeline.WithLogger(logger))

	base := []Option{
		WithLogger(logger),
		WithReporter(report.NewErrorReporter(store,
			report.WithLogger(logger),
			report.WithIPEchoURL(cfg.Dashboard.IPEchoURL),
		)),
		WithSnapshotter(snapshots),
		WithSupervisor(func(ctx context.Context, s *browser.Session) error {
			return supervisor.NewLoop(s, cfg.User,
				supervisor.WithInterval(cfg.ProbeInterval),
				supervisor.WithLogger(logger),
			).Run(ctx)
		}),
		WithCloser(proxies),
	}
	return New(cfg, p, append(base, opts...)...)
}
