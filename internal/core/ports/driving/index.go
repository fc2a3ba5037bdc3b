package driving

import (
	"context"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// IndexService crawls job folders into the catalog.
type IndexService interface {
	// Index runs a pass over every discovered job allowed by opts.
	Index(ctx context.Context, opts domain.CrawlOptions) (*domain.CrawlReport, error)

	// IndexJob runs a full pass over a single job.
	IndexJob(ctx context.Context, jobID string) (*domain.JobReport, error)
}

// RollupService recomputes job flags and aggregates.
type RollupService interface {
	// RollupJob recomputes one job.
	RollupJob(ctx context.Context, jobID string) (*domain.Rollup, error)

	// RollupAll recomputes every job, returning how many were updated.
	// Schema drift aborts before any job is touched.
	RollupAll(ctx context.Context) (int, error)
}

// CatalogService answers questions about the catalog itself.
type CatalogService interface {
	// Stats returns catalog sizes and the last run.
	Stats(ctx context.Context) (*domain.CatalogStats, error)

	// BackfillYears derives job_year for jobs that have none.
	BackfillYears(ctx context.Context) (int, error)

	// FileHistory returns every row recorded for a path.
	FileHistory(ctx context.Context, jobID, relPath string) ([]domain.FileRecord, error)

	// Runs returns recent index passes.
	Runs(ctx context.Context, limit int) ([]domain.CrawlReport, error)
}
