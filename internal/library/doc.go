// Package library reads the on-disk media library.
//
// A library root holds one <id>.info folder per item, either directly or
// under an images/ subdirectory. Each folder contains a single media file,
// an optional <name>_thumbnail.png and a metadata.json sidecar. The root may
// also carry mtime.json, a flat map of item ID to last-modified unix
// milliseconds.
//
// Extractors turn a media file path into a Record. SidecarExtractor reads the
// sidecar; ImageProbe decorates any Extractor and fills missing image
// dimensions from the image header. All filesystem access goes through the
// filesystem package so that slow or stale mounts are retried and time out.
package library
