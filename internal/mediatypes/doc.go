// Package mediatypes provides shared type definitions for classifying
// library items by extension.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # Media Types
//
//	mediatypes.MediaTypeImage    // jpg, png, gif, webp, heic, ...
//	mediatypes.MediaTypeVideo    // mp4, mkv, mov, ...
//	mediatypes.MediaTypeAudio    // mp3, flac, wav, ...
//	mediatypes.MediaTypeDocument // pdf, docx, txt, ...
//	mediatypes.MediaTypeUnknown  // anything else
//
// # Extension Detection
//
// Library sidecars store extensions without the leading dot; GetMediaType
// accepts both forms:
//
//	mediatypes.GetMediaType("JPG")  // MediaTypeImage
//	mediatypes.GetMediaType(".mp3") // MediaTypeAudio
package mediatypes
