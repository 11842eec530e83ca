package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"kiwi/internal/filesystem"
	"kiwi/internal/library"
	"kiwi/internal/logging"
	"kiwi/internal/metrics"
)

// pollForChanges periodically runs a cheap check of the library and starts
// a sync when it looks changed.
func (idx *Indexer) pollForChanges() {
	// Wait for the initial sync to complete
	for !idx.IsReady() || idx.IsRunning() {
		select {
		case <-time.After(1 * time.Second):
		case <-idx.stopChan:
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", idx.cfg.PollInterval)

	ticker := time.NewTicker(idx.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if idx.IsRunning() {
				continue
			}
			changed, err := idx.detectChanges(idx.ctx)
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Library changes detected, triggering sync")
				idx.Run(idx.ctx)
			}
		case <-idx.stopChan:
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// detectChanges compares the modification times of the items directory and
// the mtime map with those seen after the last sync. Adding or removing an
// item folder touches the former; the host application rewrites the latter
// on every edit.
func (idx *Indexer) detectChanges(ctx context.Context) (bool, error) {
	metrics.SyncPollChecksTotal.Inc()

	itemsMod, mtimesMod, err := idx.libraryModTimes(ctx)
	if err != nil {
		return false, err
	}

	idx.stateMu.RLock()
	lastItemsMod := idx.lastItemsMod
	lastMTimesMod := idx.lastMTimesMod
	idx.stateMu.RUnlock()

	if itemsMod.After(lastItemsMod) {
		logging.Debug("Items directory modified: %v > %v", itemsMod, lastItemsMod)
		metrics.SyncPollChangesDetected.Inc()
		return true, nil
	}
	if mtimesMod.After(lastMTimesMod) {
		logging.Debug("mtime map modified: %v > %v", mtimesMod, lastMTimesMod)
		metrics.SyncPollChangesDetected.Inc()
		return true, nil
	}
	return false, nil
}

// updateLastKnownState records the library state after a sync.
func (idx *Indexer) updateLastKnownState() {
	itemsMod, mtimesMod, err := idx.libraryModTimes(idx.ctx)
	if err != nil {
		logging.Warn("Failed to read library state for change polling: %v", err)
		return
	}

	idx.stateMu.Lock()
	idx.lastItemsMod = itemsMod
	idx.lastMTimesMod = mtimesMod
	idx.stateMu.Unlock()
}

// libraryModTimes returns the items directory and mtime map modification
// times. A missing mtime map yields the zero time.
func (idx *Indexer) libraryModTimes(ctx context.Context) (time.Time, time.Time, error) {
	lib, err := library.Open(ctx, idx.cfg.LibraryDir, idx.cfg.Retry)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	info, err := lib.Stat(ctx, lib.ItemsDir())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to stat items directory: %w", err)
	}
	itemsMod := info.ModTime()

	var mtimesMod time.Time
	path := filepath.Join(lib.Root(), library.MTimeMapName)
	if info, err := filesystem.StatWithRetry(ctx, path, idx.cfg.Retry); err == nil {
		mtimesMod = info.ModTime()
	}
	return itemsMod, mtimesMod, nil
}
