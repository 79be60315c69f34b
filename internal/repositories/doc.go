// Package repositories implements SQLite persistence for the scan history.
//
// [ScanRepository] handles CRUD operations with atomic sequence generation for human-readable ordering.
// Deletes are soft (deleted_at timestamps) and deleted records are excluded from queries.
//
// Sequence numbers provide stable ordering (scan #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
