// Package database provides the SQLite index for the kiwi library.
//
// It stores:
//   - Item rows, one per <id>.info folder, with normalized metadata and a
//     content hash
//   - Item to folder and item to tag relationships
//   - Sync bookkeeping (last refresh cursor, item count) in a key/value table
//
// The database uses WAL mode with foreign keys enabled. Writes are
// serialized by a write mutex; each batch runs in its own transaction.
package database
