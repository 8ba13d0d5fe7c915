package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/lexcrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "lexcrawl.db"

// timeLayout keeps stored run timestamps sortable as text.
const timeLayout = "2006-01-02 15:04:05.000"

// ErrRunNotFound is returned when a run id is not present in the database.
var ErrRunNotFound = errors.New("run not found")

// CrawlDB provides SQLite-based storage for crawl runs, the pages they
// stored, their failed fetches and the resulting lexicon.
//
// The page files and index files on disk stay authoritative. The database
// is a queryable mirror shared by every run, keyed by run id.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
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

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
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

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	// Several lexcrawl processes may share the database.
	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl/index run
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		scope_domain TEXT,
		out_dir TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		state TEXT NOT NULL,
		reason TEXT,
		pages_fetched INTEGER DEFAULT 0,
		bytes_fetched INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		tokens INTEGER DEFAULT 0,
		lemmas INTEGER DEFAULT 0
	);

	-- Pages stored by a run, by sequence number
	CREATE TABLE IF NOT EXISTS pages (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		raw_hash TEXT,
		size INTEGER,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Failed fetches of a run
	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		status_code INTEGER,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);

	-- Lemma groups produced by the indexer
	CREATE TABLE IF NOT EXISTS lemmas (
		run_id TEXT NOT NULL,
		lemma TEXT NOT NULL,
		form TEXT NOT NULL,
		PRIMARY KEY (run_id, form)
	);

	CREATE INDEX IF NOT EXISTS idx_lemmas_lemma ON lemmas(run_id, lemma);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID        string
	Seed         string
	ScopeDomain  string
	OutDir       string
	StartedAt    time.Time
	FinishedAt   time.Time
	State        model.CrawlState
	Reason       model.StopReason
	PagesFetched int
	BytesFetched int64
	Skipped      int
	Tokens       int
	Lemmas       int
}

// StartRun records a new run in the RUNNING state.
func (cdb *CrawlDB) StartRun(ctx context.Context, runID, seed, scopeDomain, outDir string, startedAt time.Time) error {
	query := `
	INSERT INTO runs (run_id, seed, scope_domain, out_dir, started_at, state)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID, seed, scopeDomain, outDir,
		startedAt.UTC().Format(timeLayout),
		string(model.CrawlRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishCrawl stores the crawl summary of a run and marks it DONE.
func (cdb *CrawlDB) FinishCrawl(ctx context.Context, runID string, summary *model.CrawlSummary) error {
	query := `
	UPDATE runs SET
		seed = ?,
		scope_domain = ?,
		finished_at = ?,
		state = ?,
		reason = ?,
		pages_fetched = ?,
		bytes_fetched = ?,
		skipped = ?
	WHERE run_id = ?
	`

	res, err := cdb.db.ExecContext(ctx, query,
		summary.Seed,
		summary.ScopeDomain,
		time.Now().UTC().Format(timeLayout),
		string(model.CrawlDone),
		string(summary.Reason),
		summary.PagesFetched,
		summary.BytesFetched,
		summary.Skipped,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return expectOneRow(res, runID)
}

// InsertPage records a stored page of a run.
func (cdb *CrawlDB) InsertPage(ctx context.Context, runID string, page *model.Page) error {
	query := `
	INSERT INTO pages (run_id, seq, url, status_code, content_type, raw_hash, size)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, seq) DO UPDATE SET
		url = excluded.url,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		raw_hash = excluded.raw_hash,
		size = excluded.size,
		fetched_at = CURRENT_TIMESTAMP
	`

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		page.Seq,
		page.URL,
		page.StatusCode,
		page.ContentType,
		page.Hash,
		len(page.Content),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

// InsertFailure records a failed fetch of a run.
func (cdb *CrawlDB) InsertFailure(ctx context.Context, runID string, f FailureRecord) error {
	query := `
	INSERT INTO failures (run_id, url, kind, status_code, error)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query, runID, f.URL, f.Kind, f.StatusCode, f.Error)
	if err != nil {
		return fmt.Errorf("failed to insert failure: %w", err)
	}
	return nil
}

// SaveLexicon replaces the lemma groups of a run and stores the index counts.
func (cdb *CrawlDB) SaveLexicon(ctx context.Context, runID string, groups map[string][]string) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM lemmas WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to clear lexicon: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO lemmas (run_id, lemma, form) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare lexicon insert: %w", err)
	}
	defer stmt.Close()

	tokens := 0
	lemmas := slices.Sorted(maps.Keys(groups))
	for _, lemma := range lemmas {
		for _, form := range groups[lemma] {
			if _, err := stmt.ExecContext(ctx, runID, lemma, form); err != nil {
				return fmt.Errorf("failed to insert form %q of %q: %w", form, lemma, err)
			}
			tokens++
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE runs SET tokens = ?, lemmas = ? WHERE run_id = ?", tokens, len(lemmas), runID); err != nil {
		return fmt.Errorf("failed to update run counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lexicon: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id. It returns nil if the run doesn't exist.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
	SELECT run_id, seed, scope_domain, out_dir, started_at, finished_at, state, reason,
		pages_fetched, bytes_fetched, skipped, tokens, lemmas
	FROM runs
	WHERE run_id = ?
	`

	rec, err := scanRun(cdb.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns all runs, most recent first.
func (cdb *CrawlDB) ListRuns(ctx context.Context) ([]*RunRecord, error) {
	query := `
	SELECT run_id, seed, scope_domain, out_dir, started_at, finished_at, state, reason,
		pages_fetched, bytes_fetched, skipped, tokens, lemmas
	FROM runs
	ORDER BY started_at DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var scope, outDir, finishedAt, reason sql.NullString
	var startedAt, state string

	err := row.Scan(
		&rec.RunID, &rec.Seed, &scope, &outDir, &startedAt, &finishedAt, &state, &reason,
		&rec.PagesFetched, &rec.BytesFetched, &rec.Skipped, &rec.Tokens, &rec.Lemmas,
	)
	if err != nil {
		return nil, err
	}

	rec.ScopeDomain = scope.String
	rec.OutDir = outDir.String
	rec.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		rec.FinishedAt = parseTimestamp(finishedAt.String)
	}
	rec.State = model.CrawlState(state)
	rec.Reason = model.StopReason(reason.String)
	return &rec, nil
}

// PageRecord is one row of the pages table.
type PageRecord struct {
	Seq         int
	URL         string
	StatusCode  int
	ContentType string
	Hash        string
	Size        int
	FetchedAt   time.Time
}

// ListPages returns the pages of a run in sequence order.
func (cdb *CrawlDB) ListPages(ctx context.Context, runID string) ([]PageRecord, error) {
	query := `
	SELECT seq, url, status_code, content_type, raw_hash, size, fetched_at
	FROM pages
	WHERE run_id = ?
	ORDER BY seq
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var p PageRecord
		var contentType, hash sql.NullString
		var fetchedAt string
		if err := rows.Scan(&p.Seq, &p.URL, &p.StatusCode, &contentType, &hash, &p.Size, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.ContentType = contentType.String
		p.Hash = hash.String
		p.FetchedAt = parseTimestamp(fetchedAt)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// HasPageHash reports whether any run stored a page with the given content hash.
func (cdb *CrawlDB) HasPageHash(ctx context.Context, hash string) (bool, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE raw_hash = ?", hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check page hash: %w", err)
	}
	return count > 0, nil
}

// FailureRecord is one row of the failures table.
type FailureRecord struct {
	URL        string
	Kind       string
	StatusCode int
	Error      string
	Timestamp  time.Time
}

// ListFailures returns the failed fetches of a run in insertion order.
func (cdb *CrawlDB) ListFailures(ctx context.Context, runID string) ([]FailureRecord, error) {
	query := `
	SELECT url, kind, status_code, error, timestamp
	FROM failures
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	var failures []FailureRecord
	for rows.Next() {
		var f FailureRecord
		var status sql.NullInt64
		var msg sql.NullString
		var timestamp string
		if err := rows.Scan(&f.URL, &f.Kind, &status, &msg, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.StatusCode = int(status.Int64)
		f.Error = msg.String
		f.Timestamp = parseTimestamp(timestamp)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// CountFailures returns the number of failed fetches of a run per kind.
func (cdb *CrawlDB) CountFailures(ctx context.Context, runID string) (map[string]int, error) {
	query := `
	SELECT kind, COUNT(*) FROM failures
	WHERE run_id = ?
	GROUP BY kind
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan failure count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// GetLexicon returns the lemma groups of a run.
func (cdb *CrawlDB) GetLexicon(ctx context.Context, runID string) (map[string][]string, error) {
	query := `
	SELECT lemma, form FROM lemmas
	WHERE run_id = ?
	ORDER BY lemma, form
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lexicon: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]string)
	for rows.Next() {
		var lemma, form string
		if err := rows.Scan(&lemma, &form); err != nil {
			return nil, fmt.Errorf("failed to scan lemma: %w", err)
		}
		groups[lemma] = append(groups[lemma], form)
	}
	return groups, rows.Err()
}

// LookupLemma returns the lemma a form belongs to in a run, or "" if unknown.
func (cdb *CrawlDB) LookupLemma(ctx context.Context, runID, form string) (string, error) {
	var lemma string
	err := cdb.db.QueryRowContext(ctx, "SELECT lemma FROM lemmas WHERE run_id = ? AND form = ?", runID, form).Scan(&lemma)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up lemma: %w", err)
	}
	return lemma, nil
}

func expectOneRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
