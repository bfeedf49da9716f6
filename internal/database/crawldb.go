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

	"github.com/SP963/pageminer/internal/model"
)

// DBFileName is the database file inside the data directory.
const DBFileName = "pageminer.db"

// ErrDatabaseNotFound is returned by Open when the database does not exist
// and CreateIfNotExists is false.
var ErrDatabaseNotFound = errors.New("database not found")

// CrawlDB is the SQLite store of crawl runs.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging so readers do not block the
	// writer.
	EnableWAL bool
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		mode = "rw"
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; concurrent batch crawls share this handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		state TEXT NOT NULL,
		pages_scraped INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0,
		links_discovered INTEGER NOT NULL DEFAULT 0,
		stats_json TEXT NOT NULL,
		combined_text TEXT,
		steps TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	CREATE TABLE IF NOT EXISTS crawl_pages (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		hash TEXT,
		fetched_at TEXT,
		html TEXT,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON crawl_pages(url);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores run and its pages, replacing an earlier save of the same ID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *model.CrawlRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	stepsJSON, err := json.Marshal(run.PerformedSteps)
	if err != nil {
		return fmt.Errorf("failed to serialize steps: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, seed, started_at, finished_at, state,
		pages_scraped, pages_failed, links_discovered, stats_json, combined_text, steps, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		state = excluded.state,
		pages_scraped = excluded.pages_scraped,
		pages_failed = excluded.pages_failed,
		links_discovered = excluded.links_discovered,
		stats_json = excluded.stats_json,
		combined_text = excluded.combined_text,
		steps = excluded.steps,
		error = excluded.error
	`,
		run.ID,
		run.Seed,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.State,
		run.Stats.PagesScraped,
		run.Stats.PagesFailed,
		run.Stats.TotalLinksDiscovered,
		string(statsJSON),
		run.CombinedText,
		string(stepsJSON),
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM crawl_pages WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (run_id, position, url, title, hash, fetched_at, html)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range run.Pages {
		if _, err := stmt.ExecContext(ctx, run.ID, i, p.URL, p.Title, p.Hash, formatTimestamp(p.FetchedAt), p.HTML); err != nil {
			return fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given ID including its pages,
// or nil if there is none.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.CrawlRun, error) {
	var (
		run                model.CrawlRun
		startedAt          string
		finishedAt         sql.NullString
		statsJSON          string
		combined, stepsRaw sql.NullString
		errMsg             sql.NullString
	)

	err := cdb.db.QueryRowContext(ctx, `
	SELECT id, seed, started_at, finished_at, state, stats_json, combined_text, steps, error
	FROM crawl_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Seed, &startedAt, &finishedAt, &run.State, &statsJSON, &combined, &stepsRaw, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)
	run.CombinedText = combined.String
	run.ErrorMessage = errMsg.String
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	if stepsRaw.String != "" {
		if err := json.Unmarshal([]byte(stepsRaw.String), &run.PerformedSteps); err != nil {
			return nil, fmt.Errorf("failed to parse steps: %w", err)
		}
	}

	pages, err := cdb.GetPages(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Pages = pages

	return &run, nil
}

// GetPages returns the pages of a run in visitation order.
func (cdb *CrawlDB) GetPages(ctx context.Context, runID string) ([]model.Page, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, title, hash, fetched_at, html
	FROM crawl_pages WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.Page, 0)
	for rows.Next() {
		var (
			p                        model.Page
			title, hash, fetched, ht sql.NullString
		)
		if err := rows.Scan(&p.URL, &title, &hash, &fetched, &ht); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Title = title.String
		p.Hash = hash.String
		p.FetchedAt = parseTimestamp(fetched.String)
		p.HTML = ht.String
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// RunSummary is the history listing entry of a run, without its pages.
type RunSummary struct {
	ID              string    `json:"id"`
	Seed            string    `json:"seed"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	State           string    `json:"state"`
	PagesScraped    int       `json:"pages_scraped"`
	PagesFailed     int       `json:"pages_failed"`
	LinksDiscovered int       `json:"links_discovered"`
}

// ListRuns returns summaries of stored runs, newest first.
// An empty seed lists the runs of every seed.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string) ([]RunSummary, error) {
	query := `
	SELECT id, seed, started_at, finished_at, state, pages_scraped, pages_failed, links_discovered
	FROM crawl_runs
	`
	args := make([]any, 0, 1)
	if seed != "" {
		query += " WHERE seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var (
			s        RunSummary
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Seed, &started, &finished, &s.State,
			&s.PagesScraped, &s.PagesFailed, &s.LinksDiscovered); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished.String)
		results = append(results, s)
	}

	return results, rows.Err()
}

// ListSeeds returns every seed with at least one stored run.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM crawl_runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, s)
	}
	return seeds, rows.Err()
}

// DeleteRun removes a run and its pages. Deleting an unknown ID is not an error.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id string) error {
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// timestampLayout is fixed width so stored timestamps sort as strings.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are tried in order by parseTimestamp.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for empty or unparseable input.
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
