// Package model defines the data structures shared by the gradientbot components.
//
// This package contains the following main types:
//   - ExtensionPackage: The downloaded extension artifact and its cache metadata
//   - ProxyConfig: A normalized proxy address and its local forwarding endpoint
//   - SessionState: The lifecycle of the single browser session
//   - ConnectivityResult: The classified state of the extension status indicator
//   - StatusSnapshot and ErrorReport: Diagnostic artifacts captured during a run
//   - RunRecord: The persisted summary of one process run
//
// The package has no dependencies on other gradientbot packages.
package model
