package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/openshelf/catkey/internal/model"
)

// HistoryDB provides SQLite-based storage for run history and per-ISBN
// resolution outcomes. Past resolutions double as a lookup cache: an
// ISBN that already resolved to a record key can skip the catalog
// search on later runs.
//
// One database file serves all runs. Runs and their resolutions are
// never updated in place; each run appends a fresh set of rows.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended; the run loop
	// writes while history queries may read.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an
// error is returned instead of creating an empty one.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "catkey.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
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

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Runs store one row per end-to-end processing run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		lists TEXT NOT NULL,
		total_found INTEGER NOT NULL,
		total_not_found INTEGER NOT NULL,
		notified INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Resolutions store per-candidate outcomes for each run
	CREATE TABLE IF NOT EXISTS resolutions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		list TEXT NOT NULL,
		isbn TEXT NOT NULL,
		title TEXT,
		author TEXT,
		record_key TEXT,
		reason TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_resolutions_run ON resolutions(run_id);
	CREATE INDEX IF NOT EXISTS idx_resolutions_isbn ON resolutions(isbn);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord summarizes one stored run.
type RunRecord struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Lists         string
	TotalFound    int
	TotalNotFound int
	Notified      bool
}

// SaveRun persists run and all of its resolution outcomes in one
// transaction.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.Run) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	acc := run.Results
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, finished_at, lists, total_found, total_not_found, notified)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		strings.Join(run.Lists, ","),
		acc.TotalResolved(),
		acc.TotalUnresolved(),
		boolToInt(run.Notified),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO resolutions (run_id, list, isbn, title, author, record_key, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare resolution insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range run.Outcomes {
		if _, err := stmt.ExecContext(ctx,
			run.ID,
			o.Candidate.List,
			o.Candidate.ISBN,
			o.Candidate.Title,
			o.Candidate.Author,
			o.Resolution.Key,
			string(o.Resolution.Reason),
		); err != nil {
			return fmt.Errorf("failed to insert resolution for %s: %w", o.Candidate.ISBN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// LastResolved returns the most recently recorded record key for an
// ISBN, or empty string when the ISBN never resolved. Used as a cache
// lookup to skip catalog searches on repeat ISBNs.
func (hdb *HistoryDB) LastResolved(ctx context.Context, isbn string) (string, error) {
	query := `
	SELECT record_key FROM resolutions
	WHERE isbn = ? AND record_key != ''
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var key string
	err := hdb.db.QueryRowContext(ctx, query, isbn).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up resolution for %s: %w", isbn, err)
	}
	return key, nil
}

// RecentRuns returns up to limit stored runs, newest first.
func (hdb *HistoryDB) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, started_at, finished_at, lists, total_found, total_not_found, notified
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []RunRecord
	for rows.Next() {
		var (
			rec                 RunRecord
			startedAt, finished string
			notified            int
		)
		if err := rows.Scan(&rec.ID, &startedAt, &finished, &rec.Lists,
			&rec.TotalFound, &rec.TotalNotFound, &notified); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = parseTimestamp(startedAt)
		rec.FinishedAt = parseTimestamp(finished)
		rec.Notified = notified != 0
		results = append(results, rec)
	}

	return results, rows.Err()
}

// RunResolutions returns the stored outcomes for one run in insert order.
func (hdb *HistoryDB) RunResolutions(ctx context.Context, runID string) ([]model.Outcome, error) {
	query := `
	SELECT list, isbn, title, author, record_key, reason
	FROM resolutions
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.Outcome
	for rows.Next() {
		var (
			o      model.Outcome
			reason string
		)
		if err := rows.Scan(&o.Candidate.List, &o.Candidate.ISBN,
			&o.Candidate.Title, &o.Candidate.Author,
			&o.Resolution.Key, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		if !o.Resolution.IsResolved() {
			o.Resolution.Reason = model.UnresolvedReason(reason)
		}
		results = append(results, o)
	}

	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending
// on configuration. Returns zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
