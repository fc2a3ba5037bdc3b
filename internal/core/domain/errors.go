package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexInProgress indicates an index pass is already running.
	ErrIndexInProgress = errors.New("index in progress")

	// Crawl Errors.

	// ErrTransientIO indicates a file could not be read or stat'ed.
	// The file is skipped and counted; the crawl continues.
	ErrTransientIO = errors.New("transient I/O error")

	// ErrPathTooLong indicates a full path exceeds the configured maximum.
	// The file is recorded without reading its content.
	ErrPathTooLong = errors.New("path length exceeded")

	// Store Errors.

	// ErrStoreContention indicates the catalog was locked by another writer.
	// Retried with backoff at the transaction boundary.
	ErrStoreContention = errors.New("catalog store busy")

	// ErrSchemaDrift indicates the catalog is missing expected columns or indexes.
	// This is fatal: the catalog must be migrated before continuing.
	ErrSchemaDrift = errors.New("catalog schema drift")

	// Query Errors.

	// ErrMalformedQuery indicates search input could not be parsed,
	// or named a job that is not in the catalog.
	ErrMalformedQuery = errors.New("malformed query")
)
