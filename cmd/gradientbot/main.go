// Package main provides the entry point for the gradientbot CLI.
//
// gradientbot keeps a Gradient Network node running inside a headless
// Chromium: it installs the Sentry Node extension, signs in to the
// dashboard, checks that the node connects and then supervises the session
// until the process is stopped.
//
// Usage:
//
//	APP_USER=me@example.com APP_PASS=secret gradientbot run
//	gradientbot history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
