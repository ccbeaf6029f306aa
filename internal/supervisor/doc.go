// Package supervisor keeps a connected session under observation until the
// process is stopped.
//
// A Scheduler runs registered tasks on a single worker, so two probes never
// touch the browser at the same time. A tick that arrives while the previous
// run of its task is still queued or active is dropped rather than queued.
package supervisor
