// Package pipeline runs the stages of a run in order: provisioning, browser
// launch, login, extension verification and the connectivity check.
//
// Each stage is a Step that reads and fills a shared State. The pipeline
// checks for cancellation before every step, stops at the first error, and
// stops early once a step has classified the connectivity result. Errors
// leave the pipeline wrapped with a stack trace for the error report.
//
// The two provisioners share nothing and no browser exists yet, so the
// provisioning step runs them concurrently with errgroup. Everything after
// it is strictly sequential.
package pipeline
