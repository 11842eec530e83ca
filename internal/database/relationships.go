package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func relationTable(kind RelationKind) (table, column string, err error) {
	switch kind {
	case RelationFolders:
		return "item_folders", "folder_id", nil
	case RelationTags:
		return "item_tags", "tag", nil
	}
	return "", "", fmt.Errorf("unknown relation kind %q", kind)
}

// DeleteRelationships removes every link of the given kind for the items.
func (d *Database) DeleteRelationships(ctx context.Context, kind RelationKind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	table, _, err := relationTable(kind)
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() { recordQuery("delete_relationships", start, err) }()

	in, args := inClause(ids)
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE item_id IN ("+in+")", args...)
		if err != nil {
			return fmt.Errorf("failed to delete %s links: %w", kind, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			observeRows("delete_"+string(kind), n)
		}
		return nil
	})
	return err
}

// InsertRelationships inserts links of the given kind. Duplicate pairs are
// ignored. A pair the store rejects (for example one whose item row does
// not exist) is returned as a RowError keyed by item ID.
func (d *Database) InsertRelationships(ctx context.Context, kind RelationKind, pairs []Pair) ([]RowError, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	table, column, err := relationTable(kind)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { recordQuery("insert_relationships", start, err) }()

	var (
		rejected []RowError
		inserted int64
	)

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO "+table+" (item_id, "+column+") VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare %s insert: %w", kind, err)
		}
		defer stmt.Close()

		for _, p := range pairs {
			res, err := stmt.ExecContext(ctx, p.ItemID, p.Value)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rejected = append(rejected, RowError{ID: p.ItemID, Err: fmt.Errorf("link %s %q: %w", kind, p.Value, err)})
				continue
			}
			n, _ := res.RowsAffected()
			inserted += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observeRows("insert_"+string(kind), inserted)
	return rejected, nil
}

// relationValues lists the sorted link values of one item.
// Callers hold the read lock.
func (d *Database) relationValues(ctx context.Context, kind RelationKind, id string) ([]string, error) {
	table, column, err := relationTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+column+" FROM "+table+" WHERE item_id = ? ORDER BY "+column, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
