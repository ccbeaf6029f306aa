package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/gradientbot/internal/model"
)

// FileName is the database file inside the history directory.
const FileName = "history.db"

// ErrRunNotFound is returned when a run ID is not in the history.
var ErrRunNotFound = errors.New("run not found")

// RunDB stores run records in SQLite.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// With CreateIfNotExists false a missing database is an error, which lets
// read-only commands report "no history" instead of creating an empty file.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	var dsn string
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("database not found at %s: %w", dbPath, os.ErrNotExist)
			}
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (r *RunDB) Path() string {
	return r.dbPath
}

// Close closes the database connection.
func (r *RunDB) Close() error {
	return r.db.Close()
}

func (r *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		user TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		outcome TEXT NOT NULL,
		failure TEXT,
		stage TEXT,
		message TEXT,
		proxy TEXT,
		extension_checksum TEXT,
		artifacts TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// StartRun inserts a run with the running outcome.
func (r *RunDB) StartRun(ctx context.Context, rec *model.RunRecord) error {
	if rec.ID == "" {
		return errors.New("run record without ID")
	}
	query := `
	INSERT INTO runs (id, user, started_at, outcome, proxy, extension_checksum)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.User,
		formatTimestamp(rec.StartedAt),
		string(model.OutcomeRunning),
		rec.Proxy,
		rec.ExtensionChecksum,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final fields of rec. Returns ErrRunNotFound when the
// run was never started.
func (r *RunDB) FinishRun(ctx context.Context, rec *model.RunRecord) error {
	artifacts, err := json.Marshal(rec.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to serialize artifacts: %w", err)
	}

	query := `
	UPDATE runs SET
		finished_at = ?,
		outcome = ?,
		failure = ?,
		stage = ?,
		message = ?,
		proxy = ?,
		extension_checksum = ?,
		artifacts = ?
	WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		formatTimestamp(rec.FinishedAt),
		string(rec.Outcome),
		string(rec.Failure),
		rec.Stage,
		rec.Message,
		rec.Proxy,
		rec.ExtensionChecksum,
		string(artifacts),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, rec.ID)
	}
	return nil
}

const selectRun = `
	SELECT id, user, started_at, finished_at, outcome, failure, stage, message,
		proxy, extension_checksum, artifacts
	FROM runs
`

// GetRun returns one run by ID.
func (r *RunDB) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// RecentRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (r *RunDB) RecentRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	query := selectRun + " ORDER BY started_at DESC, rowid DESC"
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*model.RunRecord, error) {
	var (
		rec               model.RunRecord
		started, outcome  string
		finished, failure sql.NullString
		stage, message    sql.NullString
		proxy, checksum   sql.NullString
		artifacts         sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.User, &started, &finished, &outcome, &failure,
		&stage, &message, &proxy, &checksum, &artifacts); err != nil {
		return nil, err
	}

	rec.StartedAt = parseTimestamp(started)
	rec.FinishedAt = parseTimestamp(finished.String)
	rec.Outcome = model.Outcome(outcome)
	rec.Failure = model.FailureKind(failure.String)
	rec.Stage = stage.String
	rec.Message = message.String
	rec.Proxy = proxy.String
	rec.ExtensionChecksum = checksum.String
	if artifacts.Valid && artifacts.String != "" && artifacts.String != "null" {
		if err := json.Unmarshal([]byte(artifacts.String), &rec.Artifacts); err != nil {
			// A malformed list only loses the artifacts, not the run.
			rec.Artifacts = nil
		}
	}
	return &rec, nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for empty or unknown formats.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
