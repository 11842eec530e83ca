package mediatypes

import "strings"

// MediaType represents the kind of content an item holds.
type MediaType string

const (
	// MediaTypeImage represents a still image.
	MediaTypeImage MediaType = "image"
	// MediaTypeVideo represents a video file.
	MediaTypeVideo MediaType = "video"
	// MediaTypeAudio represents an audio file.
	MediaTypeAudio MediaType = "audio"
	// MediaTypeDocument represents a document (pdf, office, text).
	MediaTypeDocument MediaType = "document"
	// MediaTypeUnknown represents an unrecognized extension.
	MediaTypeUnknown MediaType = "unknown"
)

// ImageExtensions maps extensions (without leading dot) to whether they are image formats.
var ImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
	"svg":  true,
	"ico":  true,
	"tiff": true,
	"tif":  true,
	"heic": true,
	"heif": true,
	"avif": true,
	"psd":  true,
}

// VideoExtensions maps extensions to whether they are video formats.
var VideoExtensions = map[string]bool{
	"mp4":  true,
	"mkv":  true,
	"avi":  true,
	"mov":  true,
	"wmv":  true,
	"flv":  true,
	"webm": true,
	"m4v":  true,
	"mpeg": true,
	"mpg":  true,
	"3gp":  true,
	"ts":   true,
}

// AudioExtensions maps extensions to whether they are audio formats.
var AudioExtensions = map[string]bool{
	"mp3":  true,
	"flac": true,
	"wav":  true,
	"ogg":  true,
	"oga":  true,
	"opus": true,
	"m4a":  true,
	"aac":  true,
	"wma":  true,
	"aiff": true,
	"aif":  true,
}

// DocumentExtensions maps extensions to whether they are document formats.
var DocumentExtensions = map[string]bool{
	"pdf":  true,
	"txt":  true,
	"md":   true,
	"doc":  true,
	"docx": true,
	"xls":  true,
	"xlsx": true,
	"ppt":  true,
	"pptx": true,
	"epub": true,
	"rtf":  true,
}

// ProbeableImageExtensions lists image formats whose dimensions can be read
// with the registered Go decoders.
var ProbeableImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
	"tiff": true,
	"tif":  true,
}

// NormalizeExt lowercases an extension and strips a leading dot, so that
// ".JPG", "JPG" and "jpg" all map to "jpg".
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// GetMediaType returns the MediaType for a given file extension.
// The extension may be given with or without the leading dot, in any case.
// Returns MediaTypeUnknown if the extension is not recognized.
func GetMediaType(ext string) MediaType {
	ext = NormalizeExt(ext)
	switch {
	case ImageExtensions[ext]:
		return MediaTypeImage
	case VideoExtensions[ext]:
		return MediaTypeVideo
	case AudioExtensions[ext]:
		return MediaTypeAudio
	case DocumentExtensions[ext]:
		return MediaTypeDocument
	default:
		return MediaTypeUnknown
	}
}

// IsProbeableImage reports whether image dimensions can be decoded locally.
func IsProbeableImage(ext string) bool {
	return ProbeableImageExtensions[NormalizeExt(ext)]
}

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio, MediaTypeDocument, MediaTypeUnknown:
		return true
	}
	return false
}
