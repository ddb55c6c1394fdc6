package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// DBFileName is the name of the archive file inside the database directory.
const DBFileName = "sitecrawl.db"

// timestampLayout is how times are stored. A fixed-width UTC layout keeps
// lexical order equal to chronological order.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// ResultDB provides SQLite-based storage for finished crawl results.
// It is an archive only: the crawler never reads from it.
//
// Design decision: We store visited URLs and failures as rows instead of a
// JSON blob so that the history command can count and list runs without
// decoding every result.
type ResultDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ResultDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	// Foreign keys are set in the DSN so that every pooled connection has them.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{
		db:     db,
		dbPath: dbPath,
	}

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

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

// Path returns the path of the database file.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (rdb *ResultDB) createTables() error {
	schema := `
	-- One row per crawl
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		truncated INTEGER NOT NULL DEFAULT 0,
		visited_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Visited URLs in visit order
	CREATE TABLE IF NOT EXISTS visits (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	-- Failed fetch attempts in the order they happened
	CREATE TABLE IF NOT EXISTS failures (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_failures_kind ON failures(kind);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveResult stores a finished crawl and returns the id assigned to it.
// The run, its visits and its failures are written in one transaction.
func (rdb *ResultDB) SaveResult(ctx context.Context, result *model.CrawlResult) (string, error) {
	if result == nil {
		return "", errors.New("cannot save nil result")
	}

	id := uuid.NewString()

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after a successful commit
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, root, max_depth, started_at, finished_at, cancelled, truncated, visited_count, failed_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		result.Root,
		result.MaxDepth,
		formatTimestamp(result.StartedAt),
		formatTimestamp(result.FinishedAt),
		result.Cancelled,
		result.Truncated,
		len(result.Visited),
		len(result.Errors),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	visitStmt, err := tx.PrepareContext(ctx, `INSERT INTO visits (run_id, seq, url) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare visit insert: %w", err)
	}
	defer visitStmt.Close()

	for i, u := range result.Visited {
		if _, err := visitStmt.ExecContext(ctx, id, i, u); err != nil {
			return "", fmt.Errorf("failed to insert visit: %w", err)
		}
	}

	failureStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO failures (run_id, seq, url, kind, status_code, message, depth)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer failureStmt.Close()

	for i, e := range result.Errors {
		if _, err := failureStmt.ExecContext(ctx, id, i, e.URL, e.Kind.String(), e.StatusCode, e.Message, e.Depth); err != nil {
			return "", fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return id, nil
}

// ListRuns returns archived runs, newest first.
// An empty root lists runs for every root. limit <= 0 means no limit.
func (rdb *ResultDB) ListRuns(ctx context.Context, root string, limit int) ([]model.RunSummary, error) {
	query := `
	SELECT id, root, max_depth, started_at, finished_at, cancelled, truncated, visited_count, failed_count
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if root != "" {
		query += " AND root = ?"
		args = append(args, root)
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]model.RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.RunSummary, error) {
	var run model.RunSummary
	var startedAt, finishedAt string

	err := row.Scan(
		&run.ID,
		&run.Root,
		&run.MaxDepth,
		&startedAt,
		&finishedAt,
		&run.Cancelled,
		&run.Truncated,
		&run.Visited,
		&run.Failed,
	)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	return run, nil
}

// GetRun returns the summary of the run with the given id.
// It returns ErrRunNotFound if no such run exists.
func (rdb *ResultDB) GetRun(ctx context.Context, id string) (model.RunSummary, error) {
	row := rdb.db.QueryRowContext(ctx, `
	SELECT id, root, max_depth, started_at, finished_at, cancelled, truncated, visited_count, failed_count
	FROM runs
	WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// GetResult rebuilds the full crawl result of the run with the given id.
// It returns ErrRunNotFound if no such run exists.
func (rdb *ResultDB) GetResult(ctx context.Context, id string) (*model.CrawlResult, error) {
	run, err := rdb.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	result := model.NewCrawlResult(run.Root, run.MaxDepth)
	result.StartedAt = run.StartedAt
	result.FinishedAt = run.FinishedAt
	result.Cancelled = run.Cancelled
	result.Truncated = run.Truncated

	visits, err := rdb.db.QueryContext(ctx, `SELECT url FROM visits WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits: %w", err)
	}
	defer visits.Close()

	for visits.Next() {
		var u string
		if err := visits.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		result.Visited = append(result.Visited, u)
	}
	if err := visits.Err(); err != nil {
		return nil, err
	}

	failures, err := rdb.db.QueryContext(ctx, `
	SELECT url, kind, status_code, message, depth
	FROM failures
	WHERE run_id = ?
	ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer failures.Close()

	for failures.Next() {
		var e model.CrawlError
		var kind string
		if err := failures.Scan(&e.URL, &kind, &e.StatusCode, &e.Message, &e.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		// Unknown kinds from a newer version are kept as "other".
		e.Kind, _ = model.ParseErrorKind(kind) //nolint:errcheck // falls back to ErrorKindOther
		result.Errors = append(result.Errors, e)
	}

	return result, failures.Err()
}

// LatestResult returns the id and result of the newest run for root.
// It returns ErrRunNotFound if root was never archived.
func (rdb *ResultDB) LatestResult(ctx context.Context, root string) (string, *model.CrawlResult, error) {
	runs, err := rdb.ListRuns(ctx, root, 1)
	if err != nil {
		return "", nil, err
	}
	if len(runs) == 0 {
		return "", nil, fmt.Errorf("%w: no run for %s", ErrRunNotFound, root)
	}

	result, err := rdb.GetResult(ctx, runs[0].ID)
	if err != nil {
		return "", nil, err
	}
	return runs[0].ID, result, nil
}

// DeleteRun removes a run together with its visits and failures.
// It returns ErrRunNotFound if no such run exists.
func (rdb *ResultDB) DeleteRun(ctx context.Context, id string) error {
	res, err := rdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// formatTimestamp converts t to the stored representation. The zero time is
// stored as an empty string.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may appear in the
// database. The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	time.RFC3339Nano,       // RFC3339 with nanoseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
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
