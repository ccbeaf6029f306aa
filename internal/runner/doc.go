// Package runner drives one run of the bot from provisioning to exit.
//
// The stages themselves live in the pipeline package; the runner decides
// what happens with their result. A stage error or a Disconnected status
// produces an error report, a blocked region only closes the browser, and
// a Connected session is handed to the supervision loop until the process
// is stopped. Every path closes the browser exactly once and ends in a
// model.Outcome whose ExitCode is the process exit code.
package runner
