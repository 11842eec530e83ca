package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"kiwi/internal/database"
	"kiwi/internal/startup"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(ctx, databasePath(os.Getenv("DATABASE_DIR")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open index: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure DATABASE_DIR is set correctly")
		os.Exit(1)
	}

	ok := true
	switch command {
	case "status":
		ok = showStatus(ctx, db, os.Stdout)
	case "reset":
		ok = resetCursor(ctx, db, os.Stdout)
	case "rehash":
		ok = rehash(ctx, db, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stdout)
		ok = false
	}

	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
	if !ok {
		os.Exit(1)
	}
}

// databasePath resolves the index file from DATABASE_DIR.
func databasePath(dir string) string {
	if dir == "" {
		dir = defaultDatabaseDir
	}
	return filepath.Join(dir, startup.DatabaseFile)
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_' so
// arbitrary input is never echoed to the terminal.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "kiwi sync state maintenance")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: resetcursor <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  status  - Show the sync cursor and item counts")
	fmt.Fprintln(w, "  reset   - Clear the sync cursor")
	fmt.Fprintln(w, "  rehash  - Clear the cursor and all content hashes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func showStatus(ctx context.Context, db *database.Database, w io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cursor, err := db.GetCursor(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read cursor: %v\n", err)
		return false
	}
	recorded, err := db.GetItemCount(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read item count: %v\n", err)
		return false
	}
	rows, err := db.CountItems(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to count items: %v\n", err)
		return false
	}

	if cursor.IsZero() {
		fmt.Fprintln(w, "Cursor:     not set (next sync checks every item)")
	} else {
		fmt.Fprintf(w, "Cursor:     %s (%s)\n", cursor.Format(time.RFC3339), humanize.Time(cursor))
	}
	fmt.Fprintf(w, "Item count: %s recorded by last sync\n", humanize.Comma(int64(recorded)))
	fmt.Fprintf(w, "Index rows: %s\n", humanize.Comma(int64(rows)))
	return true
}

func resetCursor(ctx context.Context, db *database.Database, w io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.ResetCursor(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to reset cursor: %v\n", err)
		return false
	}

	fmt.Fprintln(w, "Cursor cleared.")
	fmt.Fprintln(w, "The next sync compares every item against its last write time.")
	return true
}

func rehash(ctx context.Context, db *database.Database, in io.Reader, w io.Writer, interactive bool) bool {
	if interactive && !confirm(in, w, "Every item will be re-read and rewritten on the next sync. Continue? [y/N] ") {
		fmt.Fprintln(w, "Aborted.")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := db.ClearAllContentHashes(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to clear content hashes: %v\n", err)
		return false
	}
	if err := db.ResetCursor(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to reset cursor: %v\n", err)
		return false
	}

	fmt.Fprintf(w, "Cleared %s content hashes and the cursor.\n", humanize.Comma(n))
	return true
}

func confirm(in io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
