package indexer

import (
	"context"
	"fmt"
	"time"

	"kiwi/internal/database"
	"kiwi/internal/logging"
	"kiwi/internal/metrics"
)

// DefaultBatchSize is the number of rows per store transaction.
const DefaultBatchSize = 500

// Applier writes classified changes to the store in referentially safe
// order: deletions, upserts, relationship rebuilds, then bookkeeping.
// Batch boundaries carry no meaning; a failed batch only affects its items.
type Applier struct {
	store     Store
	batchSize int
}

// NewApplier creates an Applier. batchSize below 1 uses DefaultBatchSize.
func NewApplier(store Store, batchSize int) *Applier {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Applier{store: store, batchSize: batchSize}
}

// DeleteItems removes items and their folder and tag links. It returns the
// IDs whose batch was applied and an error per item whose batch failed.
// The returned error is set only when ctx ends.
func (a *Applier) DeleteItems(ctx context.Context, rc *RunContext, ids []string) ([]string, []ItemError, error) {
	var (
		deleted []string
		errs    []ItemError
	)

	for start := 0; start < len(ids); start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return deleted, errs, err
		}

		batch := ids[start:min(start+a.batchSize, len(ids))]
		if _, err := a.store.DeleteItems(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return deleted, errs, ctx.Err()
			}
			logging.Warn("Delete batch of %d items failed: %v", len(batch), err)
			metrics.SyncBatchesTotal.WithLabelValues("delete", "error").Inc()
			for _, id := range batch {
				errs = append(errs, ItemError{ID: id, Phase: StateDeleting, Err: err})
			}
		} else {
			metrics.SyncBatchesTotal.WithLabelValues("delete", "success").Inc()
			deleted = append(deleted, batch...)
		}

		rc.Report(StateDeleting, min(start+a.batchSize, len(ids)), len(ids))
	}

	return deleted, errs, nil
}

// UpsertItems writes rows in batches, one transaction each. It returns the
// rows the store accepted and an error per rejected row or failed batch.
func (a *Applier) UpsertItems(ctx context.Context, rc *RunContext, rows []database.Item) ([]database.Item, []ItemError, error) {
	var (
		written []database.Item
		errs    []ItemError
	)

	for start := 0; start < len(rows); start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return written, errs, err
		}

		batch := rows[start:min(start+a.batchSize, len(rows))]
		rejected, err := a.store.UpsertItems(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return written, errs, ctx.Err()
			}
			logging.Warn("Upsert batch of %d items failed: %v", len(batch), err)
			metrics.SyncBatchesTotal.WithLabelValues("upsert", "error").Inc()
			for _, row := range batch {
				errs = append(errs, ItemError{ID: row.ID, Phase: StateUpserting, Err: err})
			}
		} else {
			metrics.SyncBatchesTotal.WithLabelValues("upsert", "success").Inc()
			failed := make(map[string]bool, len(rejected))
			for _, r := range rejected {
				failed[r.ID] = true
				errs = append(errs, ItemError{ID: r.ID, Phase: StateUpserting, Err: r.Err})
			}
			for _, row := range batch {
				if !failed[row.ID] {
					written = append(written, row)
				}
			}
		}

		rc.Report(StateUpserting, min(start+a.batchSize, len(rows)), len(rows))
	}

	return written, errs, nil
}

// RebuildRelationships replaces the folder and tag links of rows: prior
// links are deleted, then the current ones inserted ignoring duplicates.
// Items whose rebuild failed get their content hash cleared so the next
// run classifies them as modified and retries.
func (a *Applier) RebuildRelationships(ctx context.Context, rc *RunContext, rows []database.Item) ([]ItemError, error) {
	var errs []ItemError

	for start := 0; start < len(rows); start += a.batchSize {
		if err := ctx.Err(); err != nil {
			return errs, err
		}

		batch := rows[start:min(start+a.batchSize, len(rows))]
		ids := make([]string, len(batch))
		var folders, tags []database.Pair
		for i, row := range batch {
			ids[i] = row.ID
			for _, f := range row.Folders {
				folders = append(folders, database.Pair{ItemID: row.ID, Value: f})
			}
			for _, t := range row.Tags {
				tags = append(tags, database.Pair{ItemID: row.ID, Value: t})
			}
		}

		failed := make(map[string]error)
		a.relink(ctx, database.RelationFolders, ids, folders, failed)
		a.relink(ctx, database.RelationTags, ids, tags, failed)
		if ctx.Err() != nil {
			return errs, ctx.Err()
		}

		if len(failed) > 0 {
			metrics.SyncBatchesTotal.WithLabelValues("relate", "error").Inc()
			retry := make([]string, 0, len(failed))
			for _, id := range ids {
				if err, ok := failed[id]; ok {
					retry = append(retry, id)
					errs = append(errs, ItemError{ID: id, Phase: StateRelating, Err: err})
				}
			}
			if err := a.store.ClearContentHashes(ctx, retry); err != nil {
				logging.Error("Failed to clear content hashes for %d items after relationship errors: %v", len(retry), err)
			}
		} else {
			metrics.SyncBatchesTotal.WithLabelValues("relate", "success").Inc()
		}

		rc.Report(StateRelating, min(start+a.batchSize, len(rows)), len(rows))
	}

	return errs, nil
}

// relink replaces one kind of link for ids, recording failures per item.
func (a *Applier) relink(ctx context.Context, kind database.RelationKind, ids []string, pairs []database.Pair, failed map[string]error) {
	if err := a.store.DeleteRelationships(ctx, kind, ids); err != nil {
		logging.Warn("Deleting %s links for %d items failed: %v", kind, len(ids), err)
		for _, id := range ids {
			if _, ok := failed[id]; !ok {
				failed[id] = fmt.Errorf("delete %s links: %w", kind, err)
			}
		}
		return
	}

	rejected, err := a.store.InsertRelationships(ctx, kind, pairs)
	if err != nil {
		logging.Warn("Inserting %s links for %d items failed: %v", kind, len(ids), err)
		for _, id := range ids {
			if _, ok := failed[id]; !ok {
				failed[id] = fmt.Errorf("insert %s links: %w", kind, err)
			}
		}
		return
	}
	for _, r := range rejected {
		if _, ok := failed[r.ID]; !ok {
			failed[r.ID] = r.Err
		}
	}
}

// Finalize counts the index and records cursor and count together.
func (a *Applier) Finalize(ctx context.Context, cursor time.Time) (int, error) {
	count, err := a.store.CountItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	if err := a.store.SetSyncState(ctx, cursor, count); err != nil {
		return 0, fmt.Errorf("failed to record sync state: %w", err)
	}
	return count, nil
}
