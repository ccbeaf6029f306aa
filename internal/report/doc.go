// Package report turns what happened in a run into files a person can read.
//
// The ErrorReporter captures the failure diagnostics (screenshot, browser
// console, stack trace and a Markdown summary) right before the browser is
// closed. The Snapshotter records the page at the flow checkpoints. The
// Writer implementations render the run history for the history command.
//
// Captures never fail the run: every capture is attempted independently and
// problems are logged.
package report
