// Package repositories implements SQLite persistence for analysis history.
//
// Repositories handle CRUD operations with atomic sequence generation for human-readable ordering.
// Records support soft deletes via deleted_at timestamps and queries exclude deleted records by default.
//
// Key Implementations:
//   - [HistoryRepository] : Completed analysis runs with per-playlist lookups
//
// Sequence numbers provide stable, human-readable ordering (e.g., analysis #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
