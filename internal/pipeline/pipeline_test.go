package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	goerrors "github.com/go-errors/errors"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/browser/browsertest"
	"github.com/nao1215/gradientbot/internal/dashboard"
	"github.com/nao1215/gradientbot/internal/model"
	"github.com/nao1215/gradientbot/internal/proxychain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, state *State) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, state *State) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, state)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("maintains step order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "first"})
		p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

		if got := p.StepNames(); !slices.Equal(got, []string{"first", "second", "third"}) {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("builds the default stages", func(t *testing.T) {
		t.Parallel()

		p := Default(Components{}, WithLogger(quietLogger()))

		want := []string{StageProvision, StageLaunch, StageLogin, StageVerify, StageConnectivity}
		if got := p.StepNames(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(quietLogger()))
		p.AddSteps(&mockStep{name: "step-1"}, &mockStep{name: "step-2"})

		state := &State{}
		if err := p.Execute(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(state.Completed, []string{"step-1", "step-2"}) {
			t.Errorf("wrong completed steps: %v", state.Completed)
		}
		if state.Stage != "step-2" {
			t.Errorf("expected last stage step-2, got %s", state.Stage)
		}
	})

	t.Run("stops on first error and keeps it matchable", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "should-not-run"}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(&mockStep{
			name: "failing-step",
			doFunc: func(context.Context, *State) error {
				return dashboard.ErrLoginTimeout
			},
		}, second)

		state := &State{}
		err := p.Execute(context.Background(), state)

		if !errors.Is(err, dashboard.ErrLoginTimeout) {
			t.Errorf("expected ErrLoginTimeout, got %v", err)
		}
		var ge *goerrors.Error
		if !errors.As(err, &ge) {
			t.Fatalf("expected a stack-carrying error, got %T", err)
		}
		if !strings.Contains(ge.ErrorStack(), "pipeline.go") {
			t.Errorf("expected the pipeline in the stack, got %s", ge.ErrorStack())
		}
		if second.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if state.Stage != "failing-step" {
			t.Errorf("expected failed stage to be recorded, got %s", state.Stage)
		}
	})

	t.Run("stops early once the result is known", func(t *testing.T) {
		t.Parallel()

		last := &mockStep{name: "connectivity"}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(&mockStep{
			name: "verify",
			doFunc: func(_ context.Context, s *State) error {
				s.Result = model.RegionBlocked
				return nil
			},
		}, last)

		state := &State{}
		if err := p.Execute(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if last.callCount != 0 {
			t.Error("expected remaining steps to be skipped")
		}
		if state.Result != model.RegionBlocked {
			t.Errorf("expected region blocked, got %s", state.Result)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		p := New(WithLogger(quietLogger()))
		p.AddStep(step)

		if err := p.Execute(ctx, &State{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
	})
}

type fakeExtensions struct {
	pkg *model.ExtensionPackage
	err error
}

func (f *fakeExtensions) Ensure(context.Context, string) (*model.ExtensionPackage, error) {
	return f.pkg, f.err
}

type fakeProxies struct {
	proxy *model.ProxyConfig
	block bool
	err   error
}

func (f *fakeProxies) Provision(ctx context.Context, _ string) (*model.ProxyConfig, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.proxy, f.err
}

func TestProvisionStep(t *testing.T) {
	t.Parallel()

	t.Run("stores package and proxy", func(t *testing.T) {
		t.Parallel()

		pkg := &model.ExtensionPackage{ID: "id", Path: "/work/app.crx"}
		proxy := &model.ProxyConfig{Endpoint: "http://127.0.0.1:1"}
		step := NewProvisionStep(&fakeExtensions{pkg: pkg}, &fakeProxies{proxy: proxy}, quietLogger())

		state := &State{}
		if err := step.Do(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.Package != pkg || state.Proxy != proxy {
			t.Error("expected provisioned values in state")
		}
	})

	t.Run("local proxy endpoint keeps serving after the step", func(t *testing.T) {
		t.Parallel()

		pkg := &model.ExtensionPackage{ID: "id", Path: "/work/app.crx"}
		proxies := proxychain.NewProvisioner(proxychain.WithLogger(quietLogger()))
		defer proxies.Close()
		step := NewProvisionStep(&fakeExtensions{pkg: pkg}, proxies, quietLogger())

		state := &State{ProxyAddress: "127.0.0.1:9"}
		if err := step.Do(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.Proxy == nil {
			t.Fatal("expected a proxy in state")
		}

		// The launch step runs later; give a stray shutdown time to happen.
		time.Sleep(100 * time.Millisecond)
		if status := proxychain.CheckEndpoint(context.Background(), state.Proxy.HostPort()); status != proxychain.EndpointOK {
			t.Errorf("expected the endpoint to accept a SOCKS5 greeting, got %v", status)
		}

		if err := proxies.Close(); err != nil {
			t.Fatalf("unexpected close error: %v", err)
		}
		if status := proxychain.CheckEndpoint(context.Background(), state.Proxy.HostPort()); status == proxychain.EndpointOK {
			t.Error("expected the endpoint to be gone after close")
		}
	})

	t.Run("cancels the proxy when the download fails", func(t *testing.T) {
		t.Parallel()

		downloadErr := errors.New("download failed")
		step := NewProvisionStep(&fakeExtensions{err: downloadErr}, &fakeProxies{block: true}, quietLogger())

		err := step.Do(context.Background(), &State{})
		if !errors.Is(err, downloadErr) {
			t.Errorf("expected the download error, got %v", err)
		}
	})
}

type fakeLauncher struct {
	session *browser.Session
	err     error
	got     browser.LaunchConfig
}

func (f *fakeLauncher) Launch(_ context.Context, cfg browser.LaunchConfig) (*browser.Session, error) {
	f.got = cfg
	return f.session, f.err
}

type fakeVerifier struct {
	result model.ConnectivityResult
	gotID  string
}

func (f *fakeVerifier) Verify(_ context.Context, _ *browser.Session, id string) (model.ConnectivityResult, error) {
	f.gotID = id
	return f.result, nil
}

type fakeChecker struct {
	status dashboard.Status
}

func (f *fakeChecker) Check(context.Context, *browser.Session) (dashboard.Status, error) {
	return f.status, nil
}

func TestBrowserSteps(t *testing.T) {
	t.Parallel()

	t.Run("launch passes provisioned values and keeps the session on error", func(t *testing.T) {
		t.Parallel()

		sess := browser.NewSession(browsertest.NewDriver(), "id", nil)
		launcher := &fakeLauncher{session: sess, err: browser.ErrProxyHealthCheck}
		step := NewLaunchStep(launcher, browser.LaunchConfig{Headless: true, WorkDir: "/work"})

		pkg := &model.ExtensionPackage{ID: "id"}
		state := &State{Package: pkg}
		err := step.Do(context.Background(), state)

		if !errors.Is(err, browser.ErrProxyHealthCheck) {
			t.Errorf("expected ErrProxyHealthCheck, got %v", err)
		}
		if state.Session != sess {
			t.Error("expected the session to be kept for diagnostics")
		}
		if launcher.got.Package != pkg || !launcher.got.Headless || launcher.got.WorkDir != "/work" {
			t.Errorf("unexpected launch config %+v", launcher.got)
		}
	})

	t.Run("browser steps refuse to run without a session", func(t *testing.T) {
		t.Parallel()

		for _, step := range []Step{
			NewLoginStep(nil),
			NewVerifyStep(&fakeVerifier{}),
			NewConnectivityStep(&fakeChecker{}),
		} {
			if err := step.Do(context.Background(), &State{}); !errors.Is(err, ErrNoSession) {
				t.Errorf("%s: expected ErrNoSession, got %v", step.Name(), err)
			}
		}
	})

	t.Run("verify uses the session extension id and records a final result", func(t *testing.T) {
		t.Parallel()

		verifier := &fakeVerifier{result: model.RegionBlocked}
		state := &State{Session: browser.NewSession(browsertest.NewDriver(), "derived-id", nil)}

		if err := NewVerifyStep(verifier).Do(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if verifier.gotID != "derived-id" {
			t.Errorf("expected derived-id, got %s", verifier.gotID)
		}
		if !state.Done() {
			t.Error("expected the state to be done")
		}
	})

	t.Run("verify leaves the result open when the flow continues", func(t *testing.T) {
		t.Parallel()

		state := &State{Session: browser.NewSession(browsertest.NewDriver(), "id", nil)}

		if err := NewVerifyStep(&fakeVerifier{}).Do(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.Done() {
			t.Error("expected the result to stay unknown")
		}
	})

	t.Run("connectivity records the status", func(t *testing.T) {
		t.Parallel()

		checker := &fakeChecker{status: dashboard.Status{Result: model.Disconnected, Text: "Disconnected"}}
		state := &State{Session: browser.NewSession(browsertest.NewDriver(), "id", nil)}

		if err := NewConnectivityStep(checker).Do(context.Background(), state); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if state.Result != model.Disconnected || state.StatusText != "Disconnected" {
			t.Errorf("unexpected state %+v", state)
		}
	})
}
