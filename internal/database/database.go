package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"kiwi/internal/logging"
	"kiwi/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrStoreUnreachable means the database could not be opened or pinged.
var ErrStoreUnreachable = errors.New("index store unreachable")

// Database manages all index operations.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the index at dbPath.
// dbPath is the full path to the database FILE; its parent directory must
// already exist and be writable (startup.LoadConfig validates this).
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStoreUnreachable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: failed to connect to database: %w", ErrStoreUnreachable, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ext TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		modified_at INTEGER NOT NULL DEFAULT 0,
		media_type TEXT NOT NULL CHECK (media_type IN ('image', 'video', 'audio', 'document', 'unknown')),
		width INTEGER,
		height INTEGER,
		duration REAL,
		codec TEXT,
		sample_rate INTEGER,
		channels INTEGER,
		bitrate INTEGER,
		camera_make TEXT,
		camera_model TEXT,
		captured_at INTEGER,
		gps_latitude REAL,
		gps_longitude REAL,
		annotation TEXT,
		url TEXT,
		content_hash TEXT,
		created_at INTEGER NOT NULL DEFAULT 0,
		last_write_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_items_media_type ON items(media_type);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_items_modified_at ON items(modified_at);

	CREATE TABLE IF NOT EXISTS item_folders (
		item_id TEXT NOT NULL,
		folder_id TEXT NOT NULL,
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
		UNIQUE(item_id, folder_id)
	);

	CREATE INDEX IF NOT EXISTS idx_item_folders_folder ON item_folders(folder_id);

	CREATE TABLE IF NOT EXISTS item_tags (
		item_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE,
		UNIQUE(item_id, tag)
	);

	CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies schema changes to databases created by older builds.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: last_write_at was added after the first release.
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('items')
		WHERE name='last_write_at'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for last_write_at column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding last_write_at column to items table")

		if _, err := d.db.ExecContext(ctx, `
			ALTER TABLE items ADD COLUMN last_write_at INTEGER NOT NULL DEFAULT 0
		`); err != nil {
			return fmt.Errorf("failed to add last_write_at column: %w", err)
		}

		// Without a write time the next sync re-hashes every item.
		if _, err := d.db.ExecContext(ctx, `UPDATE items SET content_hash = NULL`); err != nil {
			return fmt.Errorf("failed to reset content hashes: %w", err)
		}

		logging.Info("Migration complete: last_write_at column added")
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("ping", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnreachable, err)
	}
	return nil
}

// withTx runs fn inside a write transaction guarded by the write mutex.
// fn's error rolls the transaction back; otherwise it is committed.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	return d.endTx(tx, txStart, fn(tx))
}

// endTx commits or rolls back a transaction.
func (d *Database) endTx(tx *sql.Tx, txStart time.Time, err error) error {
	duration := time.Since(txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions logs the state of the database directory and
// files, repairing read-only WAL/SHM files left behind by another user.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix %s permissions: %v", path, chmodErr)
		} else {
			logging.Info("Fixed %s permissions", path)
		}
	}

	return nil
}
