package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kiwi/internal/mediatypes"
	"kiwi/internal/metrics"
)

// Full-table reads get a longer budget than single-row queries.
const scanTimeout = 60 * time.Second

// ErrItemNotFound is returned by GetItem for unknown IDs.
var ErrItemNotFound = errors.New("item not found")

const itemColumns = `id, name, ext, size, modified_at, media_type, width, height, duration, codec,
	sample_rate, channels, bitrate, camera_make, camera_model, captured_at, gps_latitude,
	gps_longitude, annotation, url, content_hash, created_at, last_write_at`

// AllItemIDs returns every indexed item ID.
func (d *Database) AllItemIDs(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("all_item_ids", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id FROM items ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	return ids, err
}

// ItemStates returns the content hash and last write time of every item.
func (d *Database) ItemStates(ctx context.Context) (map[string]ItemState, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("item_states", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT id, content_hash, last_write_at FROM items")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]ItemState)
	for rows.Next() {
		var (
			id        string
			hash      sql.NullString
			lastWrite int64
		)
		if err = rows.Scan(&id, &hash, &lastWrite); err != nil {
			return nil, err
		}
		states[id] = ItemState{ContentHash: hash.String, LastWriteAt: fromMillis(lastWrite)}
	}
	err = rows.Err()
	return states, err
}

// GetItem returns one item with its folders and tags.
func (d *Database) GetItem(ctx context.Context, id string) (*Item, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_item", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if item.Folders, err = d.relationValues(ctx, RelationFolders, id); err != nil {
		return nil, err
	}
	if item.Tags, err = d.relationValues(ctx, RelationTags, id); err != nil {
		return nil, err
	}
	return item, nil
}

// UpsertItems writes items in one transaction using INSERT ... ON CONFLICT.
// A row the store rejects is returned as a RowError and does not affect the
// other rows. The returned error is set only when the whole batch failed.
func (d *Database) UpsertItems(ctx context.Context, items []Item) ([]RowError, error) {
	if len(items) == 0 {
		return nil, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_items", start, err) }()

	query := `
	INSERT INTO items (` + itemColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		ext = excluded.ext,
		size = excluded.size,
		modified_at = excluded.modified_at,
		media_type = excluded.media_type,
		width = excluded.width,
		height = excluded.height,
		duration = excluded.duration,
		codec = excluded.codec,
		sample_rate = excluded.sample_rate,
		channels = excluded.channels,
		bitrate = excluded.bitrate,
		camera_make = excluded.camera_make,
		camera_model = excluded.camera_model,
		captured_at = excluded.captured_at,
		gps_latitude = excluded.gps_latitude,
		gps_longitude = excluded.gps_longitude,
		annotation = excluded.annotation,
		url = excluded.url,
		content_hash = excluded.content_hash,
		created_at = excluded.created_at,
		last_write_at = excluded.last_write_at
	`

	var rejected []RowError
	var written int64

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for i := range items {
			it := &items[i]
			if it.ID == "" {
				rejected = append(rejected, RowError{ID: it.ID, Err: errors.New("empty item id")})
				continue
			}
			if _, err := stmt.ExecContext(ctx, itemArgs(it)...); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rejected = append(rejected, RowError{ID: it.ID, Err: err})
				continue
			}
			written++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observeRows("upsert_items", written)
	return rejected, nil
}

// DeleteItems removes items and their relationships: folder links first,
// then tag links, then the item rows, all in one transaction.
func (d *Database) DeleteItems(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("delete_items", start, err) }()

	in, args := inClause(ids)
	var deleted int64

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_folders WHERE item_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("failed to delete folder links: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_tags WHERE item_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("failed to delete tag links: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id IN ("+in+")", args...)
		if err != nil {
			return fmt.Errorf("failed to delete items: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	observeRows("delete_items", deleted)
	return deleted, nil
}

// ClearContentHashes removes the recorded hash of the given items so the
// next sync treats them as modified.
func (d *Database) ClearContentHashes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("clear_hashes", start, err) }()

	in, args := inClause(ids)
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE items SET content_hash = NULL WHERE id IN ("+in+")", args...)
		return err
	})
	return err
}

// ClearAllContentHashes removes every recorded hash.
func (d *Database) ClearAllContentHashes(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_hashes", start, err) }()

	var n int64
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE items SET content_hash = NULL")
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}

// CountItems counts the item rows.
func (d *Database) CountItems(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_items", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n)
	return n, err
}

// Stats summarizes the index for the stats endpoint and metrics collector.
func (d *Database) Stats(ctx context.Context) (Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	stats := Stats{ItemsByType: make(map[string]int)}

	func() {
		d.mu.RLock()
		defer d.mu.RUnlock()

		qctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()

		var rows *sql.Rows
		rows, err = d.db.QueryContext(qctx, "SELECT media_type, COUNT(*) FROM items GROUP BY media_type")
		if err != nil {
			return
		}
		defer rows.Close()
		for rows.Next() {
			var mt string
			var n int
			if err = rows.Scan(&mt, &n); err != nil {
				return
			}
			stats.ItemsByType[mt] = n
			stats.TotalItems += n
		}
		if err = rows.Err(); err != nil {
			return
		}

		if err = d.db.QueryRowContext(qctx, "SELECT COUNT(*) FROM item_folders").Scan(&stats.FolderLinks); err != nil {
			return
		}
		err = d.db.QueryRowContext(qctx, "SELECT COUNT(*) FROM item_tags").Scan(&stats.TagLinks)
	}()
	if err != nil {
		return Stats{}, err
	}

	if stats.LastRefresh, err = d.GetCursor(ctx); err != nil {
		return Stats{}, err
	}
	if stats.ItemCount, err = d.GetItemCount(ctx); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		it                                           Item
		mediaType                                    string
		modifiedAt, createdAt, lastWriteAt           int64
		width, height, sampleRate, channels, bitrate sql.NullInt64
		capturedAt                                   sql.NullInt64
		duration, lat, lon                           sql.NullFloat64
		codec, camMake, camModel                     sql.NullString
		annotation, url, hash                        sql.NullString
	)

	err := row.Scan(&it.ID, &it.Name, &it.Ext, &it.Size, &modifiedAt, &mediaType,
		&width, &height, &duration, &codec, &sampleRate, &channels, &bitrate,
		&camMake, &camModel, &capturedAt, &lat, &lon, &annotation, &url, &hash,
		&createdAt, &lastWriteAt)
	if err != nil {
		return nil, err
	}

	it.MediaType = mediatypes.MediaType(mediaType)
	it.ModifiedAt = fromMillis(modifiedAt)
	it.CreatedAt = fromMillis(createdAt)
	it.LastWriteAt = fromMillis(lastWriteAt)
	it.Width = intPtr(width)
	it.Height = intPtr(height)
	it.SampleRate = intPtr(sampleRate)
	it.Channels = intPtr(channels)
	it.Bitrate = intPtr(bitrate)
	it.Duration = floatPtr(duration)
	it.GPSLatitude = floatPtr(lat)
	it.GPSLongitude = floatPtr(lon)
	it.Codec = stringPtr(codec)
	it.CameraMake = stringPtr(camMake)
	it.CameraModel = stringPtr(camModel)
	it.Annotation = stringPtr(annotation)
	it.URL = stringPtr(url)
	it.ContentHash = hash.String
	if capturedAt.Valid {
		t := fromMillis(capturedAt.Int64)
		it.CapturedAt = &t
	}
	return &it, nil
}

func itemArgs(it *Item) []any {
	var captured any
	if it.CapturedAt != nil {
		captured = toMillis(*it.CapturedAt)
	}
	var hash any
	if it.ContentHash != "" {
		hash = it.ContentHash
	}
	return []any{
		it.ID, it.Name, it.Ext, it.Size, toMillis(it.ModifiedAt), string(it.MediaType),
		nullable(it.Width), nullable(it.Height), nullable(it.Duration), nullable(it.Codec),
		nullable(it.SampleRate), nullable(it.Channels), nullable(it.Bitrate),
		nullable(it.CameraMake), nullable(it.CameraModel), captured,
		nullable(it.GPSLatitude), nullable(it.GPSLongitude),
		nullable(it.Annotation), nullable(it.URL), hash,
		toMillis(it.CreatedAt), toMillis(it.LastWriteAt),
	}
}

// nullable turns a nil pointer into SQL NULL and dereferences the rest.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// Times are stored as unix milliseconds; 0 means unset.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func observeRows(operation string, n int64) {
	if n > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(n))
	}
}
