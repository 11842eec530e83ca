// Package indexer reconciles the SQLite index with an on-disk media library.
//
// A sync run walks a fixed sequence of phases (validating, connecting,
// scanning, detecting, deleting, upserting, relating, finalizing) and ends
// either completed or failed. Detection classifies every item folder as new,
// modified, unchanged or errored by escalating from timestamp checks to a
// content hash comparison, so that unchanged items are never parsed twice.
// Failures confined to one item are reported in the SyncResult and never
// abort the run; only an unreachable library or store does.
//
// The Indexer serializes runs and can drive them on a schedule, from a
// lightweight change poll, or on demand.
package indexer
