package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// CatalogReader is the read side of the catalog. Implementations bound to
// a read transaction see one consistent snapshot.
type CatalogReader interface {
	// GetJob returns a job by ID or domain.ErrNotFound.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// GetJobs returns the jobs that exist among ids, keyed by ID.
	GetJobs(ctx context.Context, ids []string) (map[string]domain.Job, error)

	// ListJobs returns jobs whose year falls in years, ordered by ID.
	ListJobs(ctx context.Context, years domain.YearRange) ([]domain.Job, error)

	// LiveFiles returns a job's live files ordered by path.
	LiveFiles(ctx context.Context, jobID string) ([]domain.FileRecord, error)

	// FileHistory returns every row for a path, oldest first.
	FileHistory(ctx context.Context, jobID, relPath string) ([]domain.FileRecord, error)

	// SearchFiles returns live files matching every term, ordered by job
	// root path, then path, then most recent modification.
	SearchFiles(ctx context.Context, q domain.TermQuery) ([]domain.FileRecord, error)
}

// CatalogTx is one job's write transaction.
type CatalogTx interface {
	CatalogReader

	// EnsureJob creates the job if missing and refreshes root_path and
	// last_seen. The year is only written when the job is created.
	EnsureJob(ctx context.Context, root domain.JobRoot, year *int, now time.Time) error

	// InsertFile adds a live row and sets f.ID.
	InsertFile(ctx context.Context, f *domain.FileRecord) error

	// UpdateFile rewrites the observed fields of a live row.
	UpdateFile(ctx context.Context, f *domain.FileRecord) error

	// MarkDeleted tombstones a live row.
	MarkDeleted(ctx context.Context, fileID int64, at time.Time) error

	// UpsertFullText stores an entry unless its fingerprint is present.
	// Reports whether a new entry was written.
	UpsertFullText(ctx context.Context, entry domain.FullTextEntry) (bool, error)

	// SaveRollup writes a job's derived flags and aggregates.
	SaveRollup(ctx context.Context, jobID string, r domain.Rollup) error
}

// CatalogStore persists jobs and files.
type CatalogStore interface {
	CatalogReader

	// ReadTx runs fn against a consistent snapshot.
	ReadTx(ctx context.Context, fn func(r CatalogReader) error) error

	// WithJobTx runs fn in a write transaction, committing when fn returns
	// nil. Lock contention is retried with backoff; once retries are
	// exhausted the error wraps domain.ErrStoreContention.
	WithJobTx(ctx context.Context, fn func(tx CatalogTx) error) error

	// JobsMissingYear returns jobs whose job_year is NULL.
	JobsMissingYear(ctx context.Context) ([]domain.Job, error)

	// SetJobYear fills a NULL job_year. Reports whether a row changed.
	SetJobYear(ctx context.Context, jobID string, year int) (bool, error)

	// VerifySchema reports domain.ErrSchemaDrift when expected columns or
	// indexes are missing.
	VerifySchema(ctx context.Context) error

	// Stats returns catalog sizes.
	Stats(ctx context.Context) (*domain.CatalogStats, error)

	// RecordRun persists an index pass summary.
	RecordRun(ctx context.Context, report *domain.CrawlReport) error

	// ListRuns returns recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.CrawlReport, error)
}
