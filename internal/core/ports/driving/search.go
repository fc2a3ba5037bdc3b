package driving

import (
	"context"

	"github.com/custodia-labs/tankfinder/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search runs a job lookup ("job:101-23") or a term search.
	// Parse failures and unknown jobs return domain.ErrMalformedQuery.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}
