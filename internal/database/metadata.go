package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// KeyLastRefresh holds the sync cursor.
	KeyLastRefresh = "last_refresh"
	// KeyItemCount holds the item count written by the last finalized sync.
	KeyItemCount = "item_count"
)

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		return setMetadataTx(ctx, tx, key, value)
	})
}

func setMetadataTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetCursor returns the last refresh time. Returns zero time if no sync has
// been finalized or the cursor was reset.
func (d *Database) GetCursor(ctx context.Context) (time.Time, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_cursor", start, err) }()

	value, err := d.GetMetadata(ctx, KeyLastRefresh)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}

	var ts time.Time
	ts, err = time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", KeyLastRefresh, value, err)
	}
	return ts, nil
}

// SetSyncState writes the cursor and item count in a single transaction.
func (d *Database) SetSyncState(ctx context.Context, cursor time.Time, count int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_sync_state", start, err) }()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if err := setMetadataTx(ctx, tx, KeyLastRefresh, cursor.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to write cursor: %w", err)
		}
		if err := setMetadataTx(ctx, tx, KeyItemCount, strconv.Itoa(count)); err != nil {
			return fmt.Errorf("failed to write item count: %w", err)
		}
		return nil
	})
	return err
}

// GetItemCount returns the item count recorded by the last finalized sync,
// or 0 when none was recorded.
func (d *Database) GetItemCount(ctx context.Context) (int, error) {
	value, err := d.GetMetadata(ctx, KeyItemCount)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", KeyItemCount, value, err)
	}
	return n, nil
}

// ResetCursor clears the sync cursor so the next run compares every item
// against its own last write time.
func (d *Database) ResetCursor(ctx context.Context) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM metadata WHERE key = ?", KeyLastRefresh)
		return err
	})
}
