package indexer

import (
	"context"
	"fmt"
	"time"

	"kiwi/internal/database"
	"kiwi/internal/library"
	"kiwi/internal/metadata"
)

// Class is the per-run classification of an on-disk item.
type Class string

const (
	ClassNew       Class = "new"
	ClassModified  Class = "modified"
	ClassUnchanged Class = "unchanged"
	ClassErrored   Class = "errored"
)

// Detection reasons, in ladder order.
const (
	ReasonNoPriorRow   = "not indexed"
	ReasonFolderMTime  = "folder modified"
	ReasonMTimeMap     = "mtime map entry newer"
	ReasonSidecarMTime = "sidecar modified"
	ReasonNoHash       = "no content hash on record"
	ReasonHashMismatch = "content hash changed"
	ReasonHashMatch    = "content hash matches"
	ReasonFailed       = "detection failed"
)

// Probe is everything the collector needs to classify one item.
type Probe struct {
	Item   library.Item
	Prior  *database.ItemState
	MTime  *time.Time
	Cursor time.Time
}

// Detection is the classification of one item.
type Detection struct {
	Item   library.Item
	Class  Class
	Reason string
	// Normalized is set when the ladder had to parse the sidecar, so the
	// upsert phase can reuse it.
	Normalized *metadata.Normalized
	Err        error
}

// Collector classifies items by escalating from cheap timestamp signals
// to a full sidecar parse.
type Collector struct {
	lib       *library.Library
	extractor library.Extractor
}

// NewCollector creates a Collector reading items through lib and extractor.
func NewCollector(lib *library.Library, extractor library.Extractor) *Collector {
	return &Collector{lib: lib, extractor: extractor}
}

// Classify runs the detection ladder for one item:
//
//  1. no prior row: new
//  2. item folder modified after the baseline: modified
//  3. mtime map entry after the baseline: modified
//  4. sidecar modified after the baseline: modified
//  5. compare the recomputed content hash with the stored one
//
// The baseline is the sync cursor, or the item's own last write time when no
// cursor exists. Any stat, read or parse failure classifies the item as
// errored.
func (c *Collector) Classify(ctx context.Context, p Probe) Detection {
	d := Detection{Item: p.Item}

	if p.Prior == nil {
		d.Class, d.Reason = ClassNew, ReasonNoPriorRow
		return d
	}

	baseline := p.Cursor
	if baseline.IsZero() {
		baseline = p.Prior.LastWriteAt
	}

	info, err := c.lib.Stat(ctx, p.Item.Dir)
	if err != nil {
		return d.failed(fmt.Errorf("stat item folder: %w", err))
	}
	if info.ModTime().After(baseline) {
		d.Class, d.Reason = ClassModified, ReasonFolderMTime
		return d
	}

	if p.MTime != nil && p.MTime.After(baseline) {
		d.Class, d.Reason = ClassModified, ReasonMTimeMap
		return d
	}

	info, err = c.lib.Stat(ctx, p.Item.SidecarPath())
	if err != nil {
		return d.failed(fmt.Errorf("%w: stat sidecar: %w", library.ErrSidecarUnavailable, err))
	}
	if info.ModTime().After(baseline) {
		d.Class, d.Reason = ClassModified, ReasonSidecarMTime
		return d
	}

	if p.Prior.ContentHash == "" {
		d.Class, d.Reason = ClassModified, ReasonNoHash
		return d
	}

	n, err := c.Load(ctx, p.Item, p.MTime)
	if err != nil {
		return d.failed(err)
	}
	d.Normalized = &n

	if n.Hash != p.Prior.ContentHash {
		d.Class, d.Reason = ClassModified, ReasonHashMismatch
	} else {
		d.Class, d.Reason = ClassUnchanged, ReasonHashMatch
	}
	return d
}

// Load extracts and normalizes one item. The folder name is the item ID
// regardless of what the sidecar claims.
func (c *Collector) Load(ctx context.Context, it library.Item, override *time.Time) (metadata.Normalized, error) {
	mediaPath, err := c.lib.MediaFile(ctx, it)
	if err != nil {
		return metadata.Normalized{}, fmt.Errorf("%w: %w", metadata.ErrExtractionUnavailable, err)
	}

	rec, err := c.extractor.Extract(ctx, mediaPath)
	if err != nil {
		return metadata.Normalized{}, fmt.Errorf("%w: %w", metadata.ErrExtractionUnavailable, err)
	}
	rec.ID = it.ID

	return metadata.Normalize(rec, override)
}

func (d Detection) failed(err error) Detection {
	d.Class, d.Reason, d.Err = ClassErrored, ReasonFailed, err
	return d
}
