package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
	"github.com/custodia-labs/tankfinder/internal/core/ports/driven"
)

// fullTextIndex implements driven.FullTextIndex on FTS5.
// fts_keys holds one row per indexed fingerprint so inserts stay
// idempotent; FTS5 tables cannot carry a unique constraint.
type fullTextIndex struct {
	store *Store
}

var _ driven.FullTextIndex = (*fullTextIndex)(nil)

// tokenizeClause builds the FTS5 tokenizer option. Quote characters can
// not appear inside the separators string literal.
func tokenizeClause(separators string) string {
	sep := strings.Map(func(r rune) rune {
		if r == '\'' || r == '"' {
			return -1
		}
		return r
	}, separators)
	if sep == "" {
		return `tokenize = "unicode61 remove_diacritics 2"`
	}
	return fmt.Sprintf(`tokenize = "unicode61 separators '%s' remove_diacritics 2"`, sep)
}

// ensureFullText creates the index tables if missing.
func (s *Store) ensureFullText(ctx context.Context, q queryer) error {
	stmt := `CREATE VIRTUAL TABLE IF NOT EXISTS fts_files USING fts5(content, file_hash16 UNINDEXED, ` +
		tokenizeClause(s.separators) + `)`
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating fts_files: %w", err)
	}
	if _, err := q.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS fts_keys (file_hash16 TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("creating fts_keys: %w", err)
	}
	return nil
}

// Match returns fingerprints whose content contains every term.
func (f *fullTextIndex) Match(ctx context.Context, terms []string) ([]string, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no search terms", domain.ErrMalformedQuery)
	}
	phrases := make([]string, len(terms))
	for i, t := range terms {
		phrases[i] = ftsPhrase(t)
	}

	rows, err := f.store.db.QueryContext(ctx,
		`SELECT DISTINCT file_hash16 FROM fts_files WHERE fts_files MATCH ?`, strings.Join(phrases, " AND "))
	if err != nil {
		return nil, fmt.Errorf("matching full text: %w", err)
	}
	defer rows.Close()

	hashes := []string{}
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprints: %w", err)
	}
	return hashes, nil
}

// Rebuild drops the index and recreates it empty.
func (f *fullTextIndex) Rebuild(ctx context.Context) error {
	tx, err := f.store.wdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS fts_files`); err != nil {
		return fmt.Errorf("dropping fts_files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_keys`); err != nil {
		return fmt.Errorf("clearing fts_keys: %w", err)
	}
	if err := f.store.ensureFullText(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// missingChunk keeps IN lists below SQLite's variable limit.
const missingChunk = 500

// Missing returns the subset of hashes with no fts_keys row.
func (f *fullTextIndex) Missing(ctx context.Context, hashes []string) (map[string]bool, error) {
	missing := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		missing[h] = true
	}
	for start := 0; start < len(hashes); start += missingChunk {
		chunk := hashes[start:min(start+missingChunk, len(hashes))]
		args := make([]any, len(chunk))
		for k, h := range chunk {
			args[k] = h
		}
		query := `SELECT file_hash16 FROM fts_keys WHERE file_hash16 IN (?` +
			strings.Repeat(",?", len(chunk)-1) + `)`

		rows, err := f.store.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("checking full-text keys: %w", err)
		}
		for rows.Next() {
			var h string
			if err := rows.Scan(&h); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning fingerprint: %w", err)
			}
			delete(missing, h)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating fingerprints: %w", err)
		}
	}
	return missing, nil
}

// Count returns the number of indexed fingerprints.
func (f *fullTextIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := f.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_keys`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting full-text entries: %w", err)
	}
	return n, nil
}
