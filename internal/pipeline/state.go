package pipeline

import (
	"github.com/nao1215/gradientbot/internal/browser"
	"github.com/nao1215/gradientbot/internal/model"
)

// State is the data passed between steps.
type State struct {
	// Inputs.
	User         string
	Password     string
	ExtensionID  string
	ProxyAddress string

	// Package and Proxy are set by the provisioning step. Proxy stays nil
	// without a proxy.
	Package *model.ExtensionPackage
	Proxy   *model.ProxyConfig

	// Session is set by the launch step, also when the proxy health check
	// fails, so diagnostics can be captured.
	Session *browser.Session

	// Result and StatusText are set once the extension status is known.
	Result     model.ConnectivityResult
	StatusText string

	// Stage is the name of the step that started last.
	Stage string

	// Completed lists the steps that finished without error.
	Completed []string
}

// Done reports whether the connectivity result is known.
func (s *State) Done() bool {
	return s.Result != model.ConnectivityUnknown
}
