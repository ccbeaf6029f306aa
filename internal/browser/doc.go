// Package browser owns the Chromium process of a run.
//
// The Manager unpacks the extension package, launches one persistent Chromium
// context with the extension loaded, and probes the proxy when one is
// configured. Everything above this package talks to the page through the
// Driver interface, so the dashboard flows and the error reporter can be
// tested against the in-memory driver in the browsertest package.
//
// Selectors are passed through to Playwright unchanged and use its engine
// prefixes, for example "css=button" or `xpath=//div[contains(text(), "Status")]`.
package browser
