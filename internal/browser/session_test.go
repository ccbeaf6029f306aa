package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/browser/browsertest"
	"github.com/nao1215/gradientbot/internal/model"
)

func TestSession(t *testing.T) {
	t.Parallel()

	t.Run("starts launched and follows the lifecycle", func(t *testing.T) {
		t.Parallel()

		s := browser.NewSession(browsertest.NewDriver(), testExtensionID, nil)

		if s.State() != model.SessionLaunched {
			t.Fatalf("expected launched, got %s", s.State())
		}
		for _, next := range []model.SessionState{
			model.SessionAuthenticated,
			model.SessionExtensionVerified,
			model.SessionConnected,
		} {
			if err := s.Transition(next); err != nil {
				t.Fatalf("transition to %s: %v", next, err)
			}
		}
		if s.State() != model.SessionConnected {
			t.Errorf("expected connected, got %s", s.State())
		}
	})

	t.Run("rejects skipped states", func(t *testing.T) {
		t.Parallel()

		s := browser.NewSession(browsertest.NewDriver(), testExtensionID, nil)

		err := s.Transition(model.SessionConnected)
		var te *model.TransitionError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
		if te.From != model.SessionLaunched || te.To != model.SessionConnected {
			t.Errorf("unexpected transition error %v", te)
		}
		if s.State() != model.SessionLaunched {
			t.Errorf("expected state to be unchanged, got %s", s.State())
		}
	})

	t.Run("closes the driver once and terminates", func(t *testing.T) {
		t.Parallel()

		driver := browsertest.NewDriver()
		driver.CloseErr = errors.New("already gone")
		s := browser.NewSession(driver, testExtensionID, nil)

		first := s.Close()
		second := s.Close()

		if driver.CloseCalls() != 1 {
			t.Errorf("expected one driver close, got %d", driver.CloseCalls())
		}
		if first == nil || !errors.Is(second, first) {
			t.Errorf("expected the first close error to be returned again, got %v and %v", first, second)
		}
		if !s.Closed() || s.State() != model.SessionTerminated {
			t.Errorf("expected terminated, got %s", s.State())
		}
		if err := s.Transition(model.SessionAuthenticated); err == nil {
			t.Error("expected no transition after termination")
		}
	})
}

func TestLookup(t *testing.T) {
	t.Parallel()

	t.Run("reports found and not found", func(t *testing.T) {
		t.Parallel()

		driver := browsertest.NewDriver()
		driver.AddElement("css=button", &browsertest.Element{Text: "I got it"})

		found, err := driver.Find(context.Background(), "css=button")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := found.Element(); !ok || !found.Found() {
			t.Error("expected element to be found")
		}

		missing, err := driver.Find(context.Background(), "css=div")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if missing.Found() {
			t.Error("expected element not to be found")
		}
		if browser.NotFound().Found() {
			t.Error("expected NotFound to be empty")
		}
	})
}

func TestConsoleEntry(t *testing.T) {
	t.Parallel()

	t.Run("formats entries as level and message lines", func(t *testing.T) {
		t.Parallel()

		entries := []browser.ConsoleEntry{
			{Level: "error", Message: "net::ERR_PROXY_CONNECTION_FAILED", Time: time.Now()},
			{Level: "log", Message: "ready"},
		}

		got := browser.FormatConsole(entries)
		want := "ERROR: net::ERR_PROXY_CONNECTION_FAILED\nLOG: ready"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("formats no entries as empty text", func(t *testing.T) {
		t.Parallel()

		if got := browser.FormatConsole(nil); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}
