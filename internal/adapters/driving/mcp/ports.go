package mcp

import (
	"github.com/custodia-labs/tankfinder/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search answers job lookups and term searches.
	Search driving.SearchService

	// Catalog reports catalog status and file history.
	Catalog driving.CatalogService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Catalog is optional
	return nil
}
