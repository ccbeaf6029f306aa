// Package database keeps the run history of gradientbot in SQLite.
//
// Every process run is one row in the runs table: it is inserted when the
// run starts and completed when the run ends, so a crashed or killed process
// leaves a row with the "running" outcome behind. The history is best-effort
// bookkeeping; the bot works without it.
//
// The driver is modernc.org/sqlite, which is CGO-free and keeps the binary
// easy to cross-compile for the container image. WAL mode lets the history
// command read while a run is writing.
package database
