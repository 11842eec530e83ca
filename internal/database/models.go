package database

import (
	"time"

	"kiwi/internal/mediatypes"
)

// Item is one indexed library item. Optional attributes are pointers and
// stored as NULL when absent.
type Item struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Ext          string               `json:"ext"`
	Size         int64                `json:"size"`
	ModifiedAt   time.Time            `json:"modifiedAt"`
	MediaType    mediatypes.MediaType `json:"mediaType"`
	Width        *int                 `json:"width,omitempty"`
	Height       *int                 `json:"height,omitempty"`
	Duration     *float64             `json:"duration,omitempty"`
	Codec        *string              `json:"codec,omitempty"`
	SampleRate   *int                 `json:"sampleRate,omitempty"`
	Channels     *int                 `json:"channels,omitempty"`
	Bitrate      *int                 `json:"bitrate,omitempty"`
	CameraMake   *string              `json:"cameraMake,omitempty"`
	CameraModel  *string              `json:"cameraModel,omitempty"`
	CapturedAt   *time.Time           `json:"capturedAt,omitempty"`
	GPSLatitude  *float64             `json:"gpsLatitude,omitempty"`
	GPSLongitude *float64             `json:"gpsLongitude,omitempty"`
	Annotation   *string              `json:"annotation,omitempty"`
	URL          *string              `json:"url,omitempty"`
	ContentHash  string               `json:"contentHash"`
	CreatedAt    time.Time            `json:"createdAt"`
	LastWriteAt  time.Time            `json:"lastWriteAt"`

	// Populated by GetItem from the relationship tables.
	Folders []string `json:"folders"`
	Tags    []string `json:"tags"`
}

// ItemState is the change-detection view of an indexed item.
type ItemState struct {
	ContentHash string
	LastWriteAt time.Time
}

// RelationKind selects one of the item relationship tables.
type RelationKind string

const (
	// RelationFolders is the item to folder link table.
	RelationFolders RelationKind = "folders"
	// RelationTags is the item to tag link table.
	RelationTags RelationKind = "tags"
)

// Pair links an item to a folder ID or tag label.
type Pair struct {
	ItemID string
	Value  string
}

// RowError is a rejection of a single row inside an otherwise applied batch.
type RowError struct {
	ID  string
	Err error
}

func (e RowError) Error() string {
	return e.ID + ": " + e.Err.Error()
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Stats summarizes the index contents.
type Stats struct {
	TotalItems  int            `json:"totalItems"`
	ItemsByType map[string]int `json:"itemsByType"`
	FolderLinks int            `json:"folderLinks"`
	TagLinks    int            `json:"tagLinks"`
	ItemCount   int            `json:"itemCount"`
	LastRefresh time.Time      `json:"lastRefresh"`
}
