package extension

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/gradientbot/internal/artifact"
	"github.com/nao1215/gradientbot/internal/config"
)

// countingFetcher records every Fetch call.
type countingFetcher struct {
	mu    sync.Mutex
	calls int
	urls  []string
	body  []byte
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.urls = append(f.urls, url)
	return f.body, f.err
}

func (f *countingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// seedPackage writes a cached package aged by age.
func seedPackage(t *testing.T, store *artifact.Store, data []byte, age time.Duration) {
	t.Helper()

	path, err := store.Write(config.DefaultExtensionFilename, data)
	if err != nil {
		t.Fatalf("failed to seed package: %v", err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
}

func TestProvisionerEnsure(t *testing.T) {
	t.Parallel()

	pkgData := buildCRX3(testPublicKey, buildZip(t, map[string]string{"manifest.json": testManifest}), true)

	t.Run("fresh cached package performs zero fetches", func(t *testing.T) {
		t.Parallel()

		for _, age := range []time.Duration{0, time.Minute, 23 * time.Hour, 24*time.Hour - time.Minute} {
			store := artifact.NewStore(t.TempDir())
			seedPackage(t, store, pkgData, age)
			fetcher := &countingFetcher{body: pkgData}

			p := NewProvisioner(store, WithFetcher(fetcher), WithLogger(discardLogger()))
			pkg, err := p.Ensure(t.Context(), config.DefaultExtensionID)
			if err != nil {
				t.Fatalf("age %v: unexpected error: %v", age, err)
			}
			if fetcher.Calls() != 0 {
				t.Errorf("age %v: expected 0 fetches, got %d", age, fetcher.Calls())
			}
			if !pkg.Cached {
				t.Errorf("age %v: expected cached package", age)
			}
		}
	})

	t.Run("expired cached package performs exactly one fetch", func(t *testing.T) {
		t.Parallel()

		for _, age := range []time.Duration{24 * time.Hour, 25 * time.Hour, 30 * 24 * time.Hour} {
			store := artifact.NewStore(t.TempDir())
			seedPackage(t, store, []byte("old package"), age)
			fetcher := &countingFetcher{body: pkgData}

			p := NewProvisioner(store, WithFetcher(fetcher), WithLogger(discardLogger()))
			pkg, err := p.Ensure(t.Context(), config.DefaultExtensionID)
			if err != nil {
				t.Fatalf("age %v: unexpected error: %v", age, err)
			}
			if fetcher.Calls() != 1 {
				t.Errorf("age %v: expected 1 fetch, got %d", age, fetcher.Calls())
			}
			if pkg.Cached {
				t.Errorf("age %v: expected fresh download", age)
			}
			got, err := os.ReadFile(pkg.Path)
			if err != nil {
				t.Fatalf("failed to read package: %v", err)
			}
			if !bytes.Equal(got, pkgData) {
				t.Errorf("age %v: expected package to be replaced", age)
			}
		}
	})

	t.Run("missing package is downloaded from the versioned URL", func(t *testing.T) {
		t.Parallel()

		store := artifact.NewStore(t.TempDir())
		fetcher := &countingFetcher{body: pkgData}

		p := NewProvisioner(store, WithFetcher(fetcher), WithLogger(discardLogger()))
		pkg, err := p.Ensure(t.Context(), "abcdefghijklmnopabcdefghijklmnop")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fetcher.Calls() != 1 {
			t.Fatalf("expected 1 fetch, got %d", fetcher.Calls())
		}
		if !strings.Contains(fetcher.urls[0], "prodversion=98.0.4758.102") ||
			!strings.Contains(fetcher.urls[0], "id%3Dabcdefghijklmnopabcdefghijklmnop") {
			t.Errorf("unexpected URL %q", fetcher.urls[0])
		}
		if pkg.SourceURL != fetcher.urls[0] {
			t.Errorf("expected SourceURL %q, got %q", fetcher.urls[0], pkg.SourceURL)
		}
		if pkg.Size != int64(len(pkgData)) {
			t.Errorf("expected size %d, got %d", len(pkgData), pkg.Size)
		}
		if len(pkg.Checksum) != 32 {
			t.Errorf("expected md5 hex checksum, got %q", pkg.Checksum)
		}
	})

	t.Run("transport failure is ErrDownload", func(t *testing.T) {
		t.Parallel()

		store := artifact.NewStore(t.TempDir())
		fetcher := &countingFetcher{err: errors.New("connection refused")}

		p := NewProvisioner(store, WithFetcher(fetcher), WithLogger(discardLogger()))
		_, err := p.Ensure(t.Context(), config.DefaultExtensionID)
		if !errors.Is(err, ErrDownload) {
			t.Fatalf("expected ErrDownload, got %v", err)
		}
		if _, statErr := os.Stat(store.Path(config.DefaultExtensionFilename)); !os.IsNotExist(statErr) {
			t.Error("expected no package file after a failed download")
		}
	})

	t.Run("unusable body is ErrDownload", func(t *testing.T) {
		t.Parallel()

		store := artifact.NewStore(t.TempDir())
		fetcher := &countingFetcher{body: []byte("<html>rate limited</html>")}

		p := NewProvisioner(store, WithFetcher(fetcher), WithLogger(discardLogger()))
		_, err := p.Ensure(t.Context(), config.DefaultExtensionID)
		if !errors.Is(err, ErrDownload) {
			t.Fatalf("expected ErrDownload, got %v", err)
		}
		if !errors.Is(err, ErrInvalidPackage) {
			t.Errorf("expected ErrInvalidPackage in chain, got %v", err)
		}
	})

	t.Run("debug mode logs the checksum", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		store := artifact.NewStore(t.TempDir())
		p := NewProvisioner(store,
			WithFetcher(&countingFetcher{body: pkgData}),
			WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
			WithDebug(true),
		)

		pkg, err := p.Ensure(t.Context(), config.DefaultExtensionID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(logs.String(), "md5="+pkg.Checksum) {
			t.Errorf("expected checksum in logs: %s", logs.String())
		}
	})

	t.Run("cancelled context stops before fetching", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		fetcher := &countingFetcher{body: pkgData}
		p := NewProvisioner(artifact.NewStore(t.TempDir()), WithFetcher(fetcher), WithLogger(discardLogger()))
		if _, err := p.Ensure(ctx, config.DefaultExtensionID); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if fetcher.Calls() != 0 {
			t.Errorf("expected 0 fetches, got %d", fetcher.Calls())
		}
	})
}

func TestRestyFetcher(t *testing.T) {
	t.Parallel()

	t.Run("sends the user agent and follows the redirect", func(t *testing.T) {
		t.Parallel()

		var (
			mu    sync.Mutex
			gotUA string
		)
		mux := http.NewServeMux()
		mux.HandleFunc("/crx", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/download/app.crx", http.StatusFound)
		})
		mux.HandleFunc("/download/app.crx", func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			gotUA = r.Header.Get("User-Agent")
			mu.Unlock()
			_, _ = w.Write([]byte("payload"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		f := NewRestyFetcher("test-agent/1.0", 5*time.Second)
		body, err := f.Fetch(t.Context(), server.URL+"/crx")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "payload" {
			t.Errorf("unexpected body %q", body)
		}
		mu.Lock()
		defer mu.Unlock()
		if gotUA != "test-agent/1.0" {
			t.Errorf("expected user agent to be sent, got %q", gotUA)
		}
	})

	t.Run("error status is returned as an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}))
		defer server.Close()

		f := NewRestyFetcher("test-agent/1.0", 5*time.Second)
		if _, err := f.Fetch(t.Context(), server.URL); err == nil {
			t.Fatal("expected error for 429 response")
		}
	})
}
