// Command resetcursor inspects and resets the sync state of a kiwi index.
//
// Usage:
//
//	resetcursor <command>
//
// Commands:
//
//	status  Print the sync cursor, the item count recorded by the last
//	        finalized sync and the number of indexed rows.
//
//	reset   Clear the cursor. The next sync compares every item against
//	        its own last write time instead of the cursor.
//
//	rehash  Clear the cursor and every stored content hash. The next sync
//	        re-reads and rewrites every item. Asks for confirmation when
//	        stdin is a terminal.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
//
// Run it while the server is stopped; a sync finishing afterwards would
// write a fresh cursor.
package main
