package driven

import "context"

// FullTextIndex searches extracted content. Entries are keyed by content
// fingerprint; writes happen through CatalogTx so they commit with the job.
type FullTextIndex interface {
	// Match returns fingerprints whose content contains every term.
	Match(ctx context.Context, terms []string) ([]string, error)

	// Rebuild drops and recreates the index empty.
	Rebuild(ctx context.Context) error

	// Missing returns the subset of hashes that have no entry.
	Missing(ctx context.Context, hashes []string) (map[string]bool, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int64, error)
}
