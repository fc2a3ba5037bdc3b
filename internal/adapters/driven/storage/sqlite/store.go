package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	driver "modernc.org/sqlite" // SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/custodia-labs/tankfinder/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
	"github.com/custodia-labs/tankfinder/internal/logger"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite catalog. Reads use a pooled connection set; all
// writes go through a single connection that opens BEGIN IMMEDIATE
// transactions, so there is exactly one writer at a time.
type Store struct {
	db         *sql.DB
	wdb        *sql.DB
	path       string
	separators string

	retryAttempts int
	retryBase     time.Duration
}

var _ driven.CatalogStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithSeparators sets the full-text tokenizer separators.
func WithSeparators(sep string) Option {
	return func(s *Store) { s.separators = sep }
}

// WithRetry sets how lock contention is retried.
func WithRetry(attempts int, base time.Duration) Option {
	return func(s *Store) {
		s.retryAttempts = attempts
		s.retryBase = base
	}
}

// NewStore opens (creating if needed) the catalog at dbPath.
// If dbPath is empty, defaults to ~/.tankfinder/data/catalog.db.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".tankfinder", "data", "catalog.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	pragmas := "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	wdb, err := sql.Open("sqlite", dbPath+pragmas+"&_txlock=immediate")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	wdb.SetMaxOpenConns(1)

	s := &Store{
		db:            db,
		wdb:           wdb,
		path:          dbPath,
		separators:    domain.DefaultSeparators,
		retryAttempts: 5,
		retryBase:     50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(migrations.FS); err != nil {
		s.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.ensureFullText(context.Background(), s.wdb); err != nil {
		s.Close()
		return nil, fmt.Errorf("creating full-text index: %w", err)
	}

	return s, nil
}

// Close closes both connection pools.
func (s *Store) Close() error {
	return errors.Join(s.db.Close(), s.wdb.Close())
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// FullTextIndex returns the full-text index backed by this store.
func (s *Store) FullTextIndex() driven.FullTextIndex {
	return &fullTextIndex{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.wdb.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.wdb.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_catalog.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.wdb.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
		logger.Debug("applied migration %s", name)
	}

	return nil
}

// ReadTx runs fn against one read transaction so every query inside sees
// the same committed state.
func (s *Store) ReadTx(ctx context.Context, fn func(r driven.CatalogReader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning read transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&catalogQueries{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// WithJobTx runs fn in a write transaction on the writer connection.
// Busy and locked errors restart the whole transaction with exponential
// backoff.
func (s *Store) WithJobTx(ctx context.Context, fn func(tx driven.CatalogTx) error) error {
	delay := s.retryBase
	for attempt := 1; ; attempt++ {
		err := s.runWriteTx(ctx, fn)
		if err == nil || !isBusy(err) {
			return err
		}
		if attempt >= s.retryAttempts {
			return fmt.Errorf("%w after %d attempts: %v", domain.ErrStoreContention, attempt, err)
		}
		logger.Warn("catalog busy, retrying in %s (attempt %d/%d)", delay, attempt, s.retryAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (s *Store) runWriteTx(ctx context.Context, fn func(tx driven.CatalogTx) error) error {
	tx, err := s.wdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&catalogQueries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	var se *driver.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// ==================== Catalog reads on the pool ====================

func (s *Store) reader() *catalogQueries {
	return &catalogQueries{q: s.db}
}

// GetJob returns a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.reader().GetJob(ctx, jobID)
}

// GetJobs returns the jobs that exist among ids.
func (s *Store) GetJobs(ctx context.Context, ids []string) (map[string]domain.Job, error) {
	return s.reader().GetJobs(ctx, ids)
}

// ListJobs returns jobs in a year range.
func (s *Store) ListJobs(ctx context.Context, years domain.YearRange) ([]domain.Job, error) {
	return s.reader().ListJobs(ctx, years)
}

// LiveFiles returns a job's live files.
func (s *Store) LiveFiles(ctx context.Context, jobID string) ([]domain.FileRecord, error) {
	return s.reader().LiveFiles(ctx, jobID)
}

// FileHistory returns every row recorded for a path.
func (s *Store) FileHistory(ctx context.Context, jobID, relPath string) ([]domain.FileRecord, error) {
	return s.reader().FileHistory(ctx, jobID, relPath)
}

// SearchFiles evaluates a term query.
func (s *Store) SearchFiles(ctx context.Context, q domain.TermQuery) ([]domain.FileRecord, error) {
	return s.reader().SearchFiles(ctx, q)
}

// ==================== Maintenance ====================

// JobsMissingYear returns jobs with a NULL job_year.
func (s *Store) JobsMissingYear(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_year IS NULL ORDER BY job_id`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs without year: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// SetJobYear fills a NULL job_year.
func (s *Store) SetJobYear(ctx context.Context, jobID string, year int) (bool, error) {
	res, err := s.wdb.ExecContext(ctx,
		`UPDATE jobs SET job_year = ? WHERE job_id = ? AND job_year IS NULL`, year, jobID)
	if err != nil {
		return false, fmt.Errorf("setting job year: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting job year: %w", err)
	}
	return n > 0, nil
}

// requiredColumns are the columns the rollup and search depend on.
var requiredColumns = map[string][]string{
	"jobs": {
		"job_id", "root_path", "job_year", "recorded_year", "file_count_total", "byte_size_total",
		"has_pdf", "has_dwg_dxf", "has_compress", "has_ame", "has_photos", "has_legacy_calc",
		"score_completeness", "errors_count", "last_modified_utc", "first_seen", "last_seen",
	},
	"files": {
		"id", "job_id", "rel_path", "ext", "size_bytes", "file_hash16", "mtime_utc", "kind",
		"tokens_fname", "detector_hits", "path_too_long", "read_error", "deleted", "first_seen", "deleted_at",
	},
}

var requiredIndexes = []string{
	"idx_jobs_year",
	"idx_jobs_flags",
	"idx_files_live_path",
	"idx_files_job_del",
	"idx_files_job_ext_del",
	"idx_files_hash16",
}

// VerifySchema checks the catalog has every column and index the engine
// relies on.
func (s *Store) VerifySchema(ctx context.Context) error {
	var missing []string

	for table, cols := range requiredColumns {
		have := make(map[string]bool)
		rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
		if err != nil {
			return fmt.Errorf("reading columns of %s: %w", table, err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return fmt.Errorf("scanning column: %w", err)
			}
			have[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating columns: %w", err)
		}
		for _, c := range cols {
			if !have[c] {
				missing = append(missing, table+"."+c)
			}
		}
	}

	for _, idx := range requiredIndexes {
		if !s.objectExists(ctx, "index", idx) {
			missing = append(missing, "index "+idx)
		}
	}
	for _, tbl := range []string{"fts_files", "fts_keys"} {
		if !s.objectExists(ctx, "table", tbl) {
			missing = append(missing, "table "+tbl)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", domain.ErrSchemaDrift, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Store) objectExists(ctx context.Context, typ, name string) bool {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, typ, name).Scan(&n)
	return err == nil && n > 0
}

// Stats returns catalog sizes and the most recent run.
func (s *Store) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	var st domain.CatalogStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM jobs),
			(SELECT COUNT(*) FROM jobs WHERE job_year IS NULL),
			(SELECT COUNT(*) FROM files WHERE deleted = 0),
			(SELECT COUNT(*) FROM files WHERE deleted = 1),
			(SELECT COUNT(*) FROM fts_keys)
	`).Scan(&st.Jobs, &st.JobsWithoutYear, &st.LiveFiles, &st.DeletedFiles, &st.FullTextEntries)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		st.LastRun = &runs[0]
	}

	st.Scheduled, err = (&schedulerStore{store: s}).LatestResults(ctx)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// RecordRun persists an index pass summary.
func (s *Store) RecordRun(ctx context.Context, r *domain.CrawlReport) error {
	if r == nil || r.RunID == "" {
		return domain.ErrInvalidInput
	}
	totals, err := json.Marshal(r.Totals)
	if err != nil {
		return fmt.Errorf("marshalling totals: %w", err)
	}
	_, err = s.wdb.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, started_at, finished_at, dry_run, cancelled, jobs, jobs_failed, out_of_year, totals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, formatTime(r.StartedAt), formatTime(r.FinishedAt), boolToInt(r.DryRun), boolToInt(r.Cancelled),
		r.Jobs, r.JobsFailed, r.OutOfYear, string(totals))
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.CrawlReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, cancelled, jobs, jobs_failed, out_of_year, totals,
			COALESCE((SELECT task_id FROM task_results WHERE run_id = crawl_runs.id LIMIT 1), '')
		FROM crawl_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.CrawlReport //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.CrawlReport
		var started, finished, totals string
		var dryRun, cancelled int
		if err := rows.Scan(&r.RunID, &started, &finished, &dryRun, &cancelled,
			&r.Jobs, &r.JobsFailed, &r.OutOfYear, &totals, &r.ScheduledBy); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		r.Duration = r.FinishedAt.Sub(r.StartedAt)
		r.DryRun = dryRun == 1
		r.Cancelled = cancelled == 1
		if err := json.Unmarshal([]byte(totals), &r.Totals); err != nil {
			return nil, fmt.Errorf("decoding run totals: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ==================== Helper Functions ====================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// formatNullableTime formats a time, or returns nil for zero time.
func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// parseNullableTime parses a nullable timestamp. Returns zero time if the
// value is NULL or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseTime(s.String)
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
