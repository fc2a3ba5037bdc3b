package driven

import (
	"context"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// JobWalker discovers job folders and enumerates their files.
type JobWalker interface {
	// DiscoverJobs returns every job root under the configured roots,
	// ordered by job ID.
	DiscoverJobs(ctx context.Context) ([]domain.JobRoot, error)

	// FindJob locates one job's root, or returns domain.ErrNotFound.
	FindJob(ctx context.Context, jobID string) (*domain.JobRoot, error)

	// WalkJob calls fn for every cataloguable file under root. Ignored
	// files are counted, not reported. Returning an error from fn stops
	// the walk.
	WalkJob(ctx context.Context, root domain.JobRoot, fn func(domain.FileEntry) error) (ignored int, err error)

	// Open opens a file for reading.
	Open(path string) (domain.ContentFile, error)
}

// WatchEvent reports that something under a job changed.
type WatchEvent struct {
	JobID string
	Path  string
}

// Watcher streams change notifications for job folders.
type Watcher interface {
	// Watch emits events until ctx is cancelled. Events for one job
	// are debounced.
	Watch(ctx context.Context) (<-chan WatchEvent, error)
}
