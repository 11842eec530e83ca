// Package metadata normalizes extracted records into canonical index rows.
//
// Normalization is deterministic: folder and tag lists are trimmed,
// de-duplicated and sorted, timestamps are reduced to UTC milliseconds and
// every optional attribute is encoded explicitly (null when absent) in a
// fixed-order JSON document. The BLAKE2b-256 digest of that document is the
// item's content hash, so two records describing the same metadata hash
// identically regardless of how their sidecars ordered or omitted fields.
package metadata
