package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSidecarUnavailable means the sidecar is missing, unreadable or malformed.
var ErrSidecarUnavailable = errors.New("sidecar unavailable")

// Record is the metadata read for one item. Every optional attribute is a
// pointer; nil means the sidecar did not provide it. Timestamps are unix
// milliseconds as stored in metadata.json.
type Record struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Ext              string   `json:"ext"`
	Size             *int64   `json:"size,omitempty"`
	ModificationTime *int64   `json:"modificationTime,omitempty"`
	CreatedAt        *int64   `json:"btime,omitempty"`
	Width            *int     `json:"width,omitempty"`
	Height           *int     `json:"height,omitempty"`
	Duration         *float64 `json:"duration,omitempty"`
	Codec            *string  `json:"codec,omitempty"`
	SampleRate       *int     `json:"sampleRate,omitempty"`
	Channels         *int     `json:"channels,omitempty"`
	Bitrate          *int     `json:"bitrate,omitempty"`
	Exif             *Exif    `json:"exif,omitempty"`
	Annotation       *string  `json:"annotation,omitempty"`
	URL              *string  `json:"url,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Folders          []string `json:"folders,omitempty"`
}

// Exif holds camera attributes copied from the media file's EXIF block.
type Exif struct {
	Make         *string  `json:"make,omitempty"`
	Model        *string  `json:"model,omitempty"`
	CapturedAt   *int64   `json:"dateTimeOriginal,omitempty"`
	GPSLatitude  *float64 `json:"gpsLatitude,omitempty"`
	GPSLongitude *float64 `json:"gpsLongitude,omitempty"`
}

// ParseRecord decodes sidecar bytes. The document must be a JSON object.
func ParseRecord(data []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty sidecar", ErrSidecarUnavailable)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: sidecar is not a JSON object", ErrSidecarUnavailable)
	}

	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSidecarUnavailable, err)
	}
	return &rec, nil
}
