// Package mcp provides an MCP (Model Context Protocol) server adapter for
// TankFinder. It lets assistants search the job catalog.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
