// Package storage persists notification records.
//
// Rows are the flat field map of package notification plus the processed
// state. Two drivers exist:
//   - file: JSON lines journal compacted into a snapshot
//   - sqlite: a single SQLite database file (modernc.org/sqlite, no cgo)
package storage
