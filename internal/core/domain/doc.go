// Package domain defines the core business entities for TankFinder.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Job: A project folder identified by a job ID such as 101-23
//   - FileRecord: One cataloged file of a job, live or tombstoned
//   - Tag / TagSet: Detector classifications attached to files
//   - Rollup: Job-level flags and aggregates derived from live files
//   - SearchRequest / SearchResponse: Query-side types
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
