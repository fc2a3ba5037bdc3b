package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// queryer is the subset shared by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// catalogQueries runs catalog statements against a pool or a transaction.
type catalogQueries struct {
	q queryer
}

var (
	_ driven.CatalogReader = (*catalogQueries)(nil)
	_ driven.CatalogTx     = (*catalogQueries)(nil)
)

const jobColumns = `job_id, root_path, job_year, recorded_year, file_count_total, byte_size_total,
	has_pdf, has_dwg_dxf, has_compress, has_ame, has_photos, has_legacy_calc,
	score_completeness, errors_count, last_modified_utc, first_seen, last_seen`

const fileColumns = `id, job_id, rel_path, ext, size_bytes, file_hash16, mtime_utc, kind,
	tokens_fname, detector_hits, path_too_long, read_error, deleted, first_seen, deleted_at`

// ==================== Jobs ====================

// GetJob returns a job by ID.
func (c *catalogQueries) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJobs returns the jobs that exist among ids.
func (c *catalogQueries) GetJobs(ctx context.Context, ids []string) (map[string]domain.Job, error) {
	out := make(map[string]domain.Job, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encoding job ids: %w", err)
	}
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id IN (SELECT value FROM json_each(?))`, string(idsJSON))
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		out[j.ID] = j
	}
	return out, nil
}

// ListJobs returns jobs in a year range.
func (c *catalogQueries) ListJobs(ctx context.Context, years domain.YearRange) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []any
	if years.Min > 0 {
		query += ` AND job_year >= ?`
		args = append(args, years.Min)
	}
	if years.Max > 0 {
		query += ` AND job_year <= ?`
		args = append(args, years.Max)
	}
	query += ` ORDER BY job_id`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// EnsureJob creates or refreshes a job row. job_year is only set on insert;
// a recorded year, once known, is never cleared.
func (c *catalogQueries) EnsureJob(ctx context.Context, root domain.JobRoot, year *int, now time.Time) error {
	if root.ID == "" || root.RootPath == "" {
		return fmt.Errorf("%w: job id and root path are required", domain.ErrInvalidInput)
	}
	ts := formatTime(now)
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO jobs (job_id, root_path, job_year, recorded_year, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			root_path = excluded.root_path,
			last_seen = excluded.last_seen,
			recorded_year = COALESCE(excluded.recorded_year, jobs.recorded_year)
	`, root.ID, root.RootPath, nullInt(year), nullInt(root.RecordedYear), ts, ts)
	if err != nil {
		return fmt.Errorf("ensuring job %s: %w", root.ID, err)
	}
	return nil
}

// SaveRollup writes the derived job columns.
func (c *catalogQueries) SaveRollup(ctx context.Context, jobID string, r domain.Rollup) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE jobs SET
			file_count_total = ?,
			byte_size_total = ?,
			has_pdf = ?,
			has_dwg_dxf = ?,
			has_compress = ?,
			has_ame = ?,
			has_photos = ?,
			has_legacy_calc = ?,
			score_completeness = ?,
			errors_count = ?,
			last_modified_utc = ?
		WHERE job_id = ?
	`, r.FileCountTotal, r.ByteSizeTotal,
		boolToInt(r.Flags.HasPDF), boolToInt(r.Flags.HasDWGDXF), boolToInt(r.Flags.HasCompress),
		boolToInt(r.Flags.HasAME), boolToInt(r.Flags.HasPhotos), boolToInt(r.Flags.HasLegacyCalc),
		r.ScoreCompleteness, r.ErrorsCount, formatNullableTime(r.LastModified), jobID)
	if err != nil {
		return fmt.Errorf("saving rollup for %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saving rollup for %s: %w", jobID, domain.ErrNotFound)
	}
	return nil
}

// ==================== Files ====================

// LiveFiles returns a job's live files ordered by path.
func (c *catalogQueries) LiveFiles(ctx context.Context, jobID string) ([]domain.FileRecord, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE job_id = ? AND deleted = 0 ORDER BY rel_path`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying live files: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FileHistory returns every row for a path, oldest first.
func (c *catalogQueries) FileHistory(ctx context.Context, jobID, relPath string) ([]domain.FileRecord, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE job_id = ? AND rel_path = ? ORDER BY id`, jobID, relPath)
	if err != nil {
		return nil, fmt.Errorf("querying file history: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// InsertFile adds a live row.
func (c *catalogQueries) InsertFile(ctx context.Context, f *domain.FileRecord) error {
	if f == nil || f.JobID == "" || f.RelPath == "" || f.Hash16 == "" {
		return fmt.Errorf("%w: file needs job, path and fingerprint", domain.ErrInvalidInput)
	}
	if f.FirstSeen.IsZero() {
		f.FirstSeen = time.Now()
	}
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO files (job_id, rel_path, ext, size_bytes, file_hash16, mtime_utc, kind,
			tokens_fname, detector_hits, path_too_long, read_error, deleted, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, f.JobID, f.RelPath, f.Ext, f.SizeBytes, f.Hash16, formatTime(f.MTime), string(f.Kind),
		strings.Join(f.TokensFname, " "), f.DetectorHits.String(), boolToInt(f.PathTooLong),
		nullString(f.ReadError), formatTime(f.FirstSeen))
	if err != nil {
		return fmt.Errorf("inserting %s/%s: %w", f.JobID, f.RelPath, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	f.ID = id
	f.Deleted = false
	return nil
}

// UpdateFile rewrites the observed fields of a live row.
func (c *catalogQueries) UpdateFile(ctx context.Context, f *domain.FileRecord) error {
	if f == nil || f.ID == 0 {
		return fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}
	res, err := c.q.ExecContext(ctx, `
		UPDATE files SET
			ext = ?, size_bytes = ?, file_hash16 = ?, mtime_utc = ?, kind = ?,
			tokens_fname = ?, detector_hits = ?, path_too_long = ?, read_error = ?
		WHERE id = ? AND deleted = 0
	`, f.Ext, f.SizeBytes, f.Hash16, formatTime(f.MTime), string(f.Kind),
		strings.Join(f.TokensFname, " "), f.DetectorHits.String(), boolToInt(f.PathTooLong),
		nullString(f.ReadError), f.ID)
	if err != nil {
		return fmt.Errorf("updating file %d: %w", f.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating file %d: %w", f.ID, domain.ErrNotFound)
	}
	return nil
}

// MarkDeleted tombstones a live row.
func (c *catalogQueries) MarkDeleted(ctx context.Context, fileID int64, at time.Time) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE files SET deleted = 1, deleted_at = ? WHERE id = ? AND deleted = 0`, formatTime(at), fileID)
	if err != nil {
		return fmt.Errorf("deleting file %d: %w", fileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deleting file %d: %w", fileID, domain.ErrNotFound)
	}
	return nil
}

// UpsertFullText stores content under its fingerprint once.
func (c *catalogQueries) UpsertFullText(ctx context.Context, e domain.FullTextEntry) (bool, error) {
	if e.Hash16 == "" {
		return false, fmt.Errorf("%w: full-text entry needs a fingerprint", domain.ErrInvalidInput)
	}
	res, err := c.q.ExecContext(ctx, `INSERT OR IGNORE INTO fts_keys (file_hash16) VALUES (?)`, e.Hash16)
	if err != nil {
		return false, fmt.Errorf("claiming full-text key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if _, err := c.q.ExecContext(ctx,
		`INSERT INTO fts_files (content, file_hash16) VALUES (?, ?)`, e.Content, e.Hash16); err != nil {
		return false, fmt.Errorf("inserting full-text entry: %w", err)
	}
	return true, nil
}

// SearchFiles returns live files matching every term.
// A term matches when it is one of the file's name tokens or when the
// file's content fingerprint matches it in the full-text index. With
// Near set, content must hold the terms close together instead. A query
// with filters but no terms returns every live file of matching jobs.
func (c *catalogQueries) SearchFiles(ctx context.Context, q domain.TermQuery) ([]domain.FileRecord, error) {
	browse := q.JobID != "" || q.Years.IsSet() || len(q.Flags) > 0
	if len(q.Terms) == 0 && q.Hashes == nil && !browse {
		return nil, fmt.Errorf("%w: no search terms or filters", domain.ErrMalformedQuery)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT `)
	sb.WriteString(prefixColumns("f.", fileColumns))
	sb.WriteString(` FROM files f JOIN jobs j ON j.job_id = f.job_id WHERE f.deleted = 0`)
	var args []any

	if q.JobID != "" {
		sb.WriteString(` AND f.job_id = ?`)
		args = append(args, q.JobID)
	}
	var ranges []string
	for _, r := range q.Years {
		var conds []string
		if r.Min > 0 {
			conds = append(conds, `j.job_year >= ?`)
			args = append(args, r.Min)
		}
		if r.Max > 0 {
			conds = append(conds, `j.job_year <= ?`)
			args = append(args, r.Max)
		}
		if len(conds) > 0 {
			ranges = append(ranges, `(`+strings.Join(conds, ` AND `)+`)`)
		}
	}
	if len(ranges) > 0 {
		sb.WriteString(` AND (` + strings.Join(ranges, ` OR `) + `)`)
	}
	for _, flag := range q.Flags {
		col, ok := flagColumns[flag]
		if !ok {
			return nil, fmt.Errorf("%w: unknown flag %q", domain.ErrInvalidInput, flag)
		}
		sb.WriteString(` AND j.` + col + ` = 1`)
	}
	if q.Hashes != nil {
		hashes, err := json.Marshal(q.Hashes)
		if err != nil {
			return nil, fmt.Errorf("encoding fingerprints: %w", err)
		}
		sb.WriteString(` AND f.file_hash16 IN (SELECT value FROM json_each(?))`)
		args = append(args, string(hashes))
	}

	const contentMatch = `f.file_hash16 IN (SELECT file_hash16 FROM fts_files WHERE fts_files MATCH ?)`
	if q.Near && len(q.Terms) > 1 {
		if q.ContentOnly {
			sb.WriteString(` AND ` + contentMatch)
		} else {
			sb.WriteString(` AND ((`)
			for k, term := range q.Terms {
				if k > 0 {
					sb.WriteString(` AND `)
				}
				sb.WriteString(`instr(' ' || f.tokens_fname || ' ', ?) > 0`)
				args = append(args, " "+term+" ")
			}
			sb.WriteString(`) OR ` + contentMatch + `)`)
		}
		args = append(args, ftsNear(q.Terms))
	} else {
		for _, term := range q.Terms {
			if q.ContentOnly {
				sb.WriteString(` AND ` + contentMatch)
				args = append(args, ftsPhrase(term))
				continue
			}
			sb.WriteString(` AND (instr(' ' || f.tokens_fname || ' ', ?) > 0 OR ` + contentMatch + `)`)
			args = append(args, " "+term+" ", ftsPhrase(term))
		}
	}

	sb.WriteString(` ORDER BY j.root_path, j.job_id, f.rel_path, f.mtime_utc DESC, f.id`)

	rows, err := c.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

var flagColumns = map[domain.Flag]string{
	domain.FlagPDF:        "has_pdf",
	domain.FlagCAD:        "has_dwg_dxf",
	domain.FlagCompress:   "has_compress",
	domain.FlagAME:        "has_ame",
	domain.FlagPhotos:     "has_photos",
	domain.FlagLegacyCalc: "has_legacy_calc",
}

func prefixColumns(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ftsPhrase quotes a term as an FTS5 string so operators in it are literal.
func ftsPhrase(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

// ftsNear builds an FTS5 NEAR group over the terms at the default
// distance of ten tokens.
func ftsNear(terms []string) string {
	phrases := make([]string, len(terms))
	for i, t := range terms {
		phrases[i] = ftsPhrase(t)
	}
	return `NEAR(` + strings.Join(phrases, " ") + `)`
}

// ==================== Scanning ====================

type scanner interface {
	Scan(dest ...any) error
}

func scanJobInto(s scanner) (*domain.Job, error) {
	var j domain.Job
	var year, recorded sql.NullInt64
	var hasPDF, hasCAD, hasCompress, hasAME, hasPhotos, hasLegacy int
	var lastModified sql.NullString
	var firstSeen, lastSeen string

	err := s.Scan(&j.ID, &j.RootPath, &year, &recorded, &j.FileCountTotal, &j.ByteSizeTotal,
		&hasPDF, &hasCAD, &hasCompress, &hasAME, &hasPhotos, &hasLegacy,
		&j.ScoreCompleteness, &j.ErrorsCount, &lastModified, &firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		j.Year = &y
	}
	if recorded.Valid {
		y := int(recorded.Int64)
		j.RecordedYear = &y
	}
	j.Flags = domain.JobFlags{
		HasPDF:        hasPDF == 1,
		HasDWGDXF:     hasCAD == 1,
		HasCompress:   hasCompress == 1,
		HasAME:        hasAME == 1,
		HasPhotos:     hasPhotos == 1,
		HasLegacyCalc: hasLegacy == 1,
	}
	j.LastModified = parseNullableTime(lastModified)
	j.FirstSeen = parseTime(firstSeen)
	j.LastSeen = parseTime(lastSeen)
	return &j, nil
}

func scanJob(row *sql.Row) (*domain.Job, error) {
	j, err := scanJobInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]domain.Job, error) {
	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		j, err := scanJobInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanFiles(rows *sql.Rows) ([]domain.FileRecord, error) {
	var files []domain.FileRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var f domain.FileRecord
		var mtime, kind, tokens, hits, firstSeen string
		var tooLong, deleted int
		var readErr, deletedAt sql.NullString

		if err := rows.Scan(&f.ID, &f.JobID, &f.RelPath, &f.Ext, &f.SizeBytes, &f.Hash16, &mtime, &kind,
			&tokens, &hits, &tooLong, &readErr, &deleted, &firstSeen, &deletedAt); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}

		f.MTime = parseTime(mtime)
		f.Kind = domain.FileKind(kind)
		f.TokensFname = strings.Fields(tokens)
		f.DetectorHits = domain.ParseTagSet(hits)
		f.PathTooLong = tooLong == 1
		f.ReadError = readErr.String
		f.Deleted = deleted == 1
		f.FirstSeen = parseTime(firstSeen)
		f.DeletedAt = parseNullableTime(deletedAt)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}
	return files, nil
}
