// Package sqlite implements the catalog on SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file holds:
//
//   - jobs: one row per job folder with its rollup columns
//   - files: append-only file history, at most one live row per path
//   - fts_files / fts_keys: the FTS5 content index keyed by fingerprint
//   - crawl_runs: index pass summaries
//   - scheduled_tasks / task_results: daemon task state
//
// # Schema
//
// The relational schema is managed through versioned migrations stored in the
// migrations/ directory. The FTS5 table is created at open time because its
// tokenizer options come from configuration.
//
// # Data Location
//
// By default, the database is stored at ~/.tankfinder/data/catalog.db
//
// # Concurrency
//
// Reads use a connection pool in WAL mode. Writes use a single connection and
// BEGIN IMMEDIATE transactions, so there is one writer at a time; lock
// contention with other processes is retried with backoff.
package sqlite
