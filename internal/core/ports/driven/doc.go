// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CatalogStore: Jobs and files, written one job transaction at a time
//   - FullTextIndex: Content search keyed by file fingerprint
//   - JobWalker: Discovers job folders and enumerates their files
//   - Hasher: Content and path fingerprints
//   - Tokenizer: Filename, content and query normalization
//   - DetectorRegistry: Classifies files into tags
//   - ConfigStore: Application settings
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Normaliser: Text extraction. Without it, only filenames are searchable.
//   - SchedulerStore: Daemon task state. Only needed by the scheduler.
//   - Watcher: Change notifications. Only needed by watch mode.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
