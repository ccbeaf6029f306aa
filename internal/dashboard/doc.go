// Package dashboard drives the Gradient web dashboard and the extension popup.
//
// The three flows run strictly in order on one browser session:
// LoginFlow signs in, Verifier opens the extension popup and clears the
// onboarding dialog, Checker reads and classifies the status indicator.
// Each flow moves the session along its lifecycle when it succeeds. No flow
// retries; every UI wait is bounded by the configured timeout.
package dashboard
