package metadata

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"kiwi/internal/database"
	"kiwi/internal/library"
	"kiwi/internal/mediatypes"
)

// ErrExtractionUnavailable means no usable record could be produced for an
// item. Callers classify the item as errored; it never aborts a sync.
var ErrExtractionUnavailable = errors.New("metadata extraction unavailable")

// canonicalVersion is bumped whenever the canonical encoding changes, which
// invalidates every stored hash.
const canonicalVersion = 1

// Normalized is the canonical row for one item. Hash equals Item.ContentHash.
type Normalized struct {
	Item database.Item
	Hash string
}

// Normalize turns a raw record into a canonical item row and its content
// hash. The same record always yields the same hash. override, when set,
// replaces the record's modification time (it comes from the library's
// mtime map). LastWriteAt is left for the caller to stamp.
func Normalize(rec *library.Record, override *time.Time) (Normalized, error) {
	if rec == nil {
		return Normalized{}, fmt.Errorf("%w: no record", ErrExtractionUnavailable)
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return Normalized{}, fmt.Errorf("%w: record has no id", ErrExtractionUnavailable)
	}
	if rec.Size != nil && *rec.Size < 0 {
		return Normalized{}, fmt.Errorf("%w: %s: negative size %d", ErrExtractionUnavailable, id, *rec.Size)
	}

	ext := mediatypes.NormalizeExt(rec.Ext)
	item := database.Item{
		ID:         id,
		Name:       strings.TrimSpace(rec.Name),
		Ext:        ext,
		MediaType:  mediatypes.GetMediaType(ext),
		Width:      nonNegative(rec.Width),
		Height:     nonNegative(rec.Height),
		Duration:   rec.Duration,
		Codec:      cleanString(rec.Codec),
		SampleRate: nonNegative(rec.SampleRate),
		Channels:   nonNegative(rec.Channels),
		Bitrate:    nonNegative(rec.Bitrate),
		Annotation: cleanString(rec.Annotation),
		URL:        cleanString(rec.URL),
		Folders:    cleanSet(rec.Folders),
		Tags:       cleanSet(rec.Tags),
	}
	if rec.Size != nil {
		item.Size = *rec.Size
	}

	switch {
	case override != nil && !override.IsZero():
		item.ModifiedAt = millis(*override)
	case rec.ModificationTime != nil:
		item.ModifiedAt = fromMillis(*rec.ModificationTime)
	case rec.CreatedAt != nil:
		item.ModifiedAt = fromMillis(*rec.CreatedAt)
	}
	if rec.CreatedAt != nil {
		item.CreatedAt = fromMillis(*rec.CreatedAt)
	} else {
		item.CreatedAt = item.ModifiedAt
	}

	if exif := rec.Exif; exif != nil {
		item.CameraMake = cleanString(exif.Make)
		item.CameraModel = cleanString(exif.Model)
		item.GPSLatitude = exif.GPSLatitude
		item.GPSLongitude = exif.GPSLongitude
		if exif.CapturedAt != nil {
			t := fromMillis(*exif.CapturedAt)
			item.CapturedAt = &t
		}
	}

	hash, err := Hash(&item)
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: %s: %w", ErrExtractionUnavailable, id, err)
	}
	item.ContentHash = hash

	return Normalized{Item: item, Hash: hash}, nil
}

// canonical is the hashed encoding. Field order is fixed by declaration and
// every optional field is present, encoded as null when absent.
type canonical struct {
	Version      int      `json:"v"`
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Ext          string   `json:"ext"`
	Size         int64    `json:"size"`
	ModifiedAt   int64    `json:"modifiedAt"`
	MediaType    string   `json:"mediaType"`
	Width        *int     `json:"width"`
	Height       *int     `json:"height"`
	Duration     *float64 `json:"duration"`
	Codec        *string  `json:"codec"`
	SampleRate   *int     `json:"sampleRate"`
	Channels     *int     `json:"channels"`
	Bitrate      *int     `json:"bitrate"`
	CameraMake   *string  `json:"cameraMake"`
	CameraModel  *string  `json:"cameraModel"`
	CapturedAt   *int64   `json:"capturedAt"`
	GPSLatitude  *float64 `json:"gpsLatitude"`
	GPSLongitude *float64 `json:"gpsLongitude"`
	Annotation   *string  `json:"annotation"`
	URL          *string  `json:"url"`
	CreatedAt    int64    `json:"createdAt"`
	Folders      []string `json:"folders"`
	Tags         []string `json:"tags"`
}

// Canonical returns the canonical JSON encoding of an item's metadata.
// ContentHash and LastWriteAt are not part of it.
func Canonical(item *database.Item) ([]byte, error) {
	c := canonical{
		Version:      canonicalVersion,
		ID:           item.ID,
		Name:         item.Name,
		Ext:          item.Ext,
		Size:         item.Size,
		ModifiedAt:   unixMillis(item.ModifiedAt),
		MediaType:    string(item.MediaType),
		Width:        item.Width,
		Height:       item.Height,
		Duration:     item.Duration,
		Codec:        item.Codec,
		SampleRate:   item.SampleRate,
		Channels:     item.Channels,
		Bitrate:      item.Bitrate,
		CameraMake:   item.CameraMake,
		CameraModel:  item.CameraModel,
		GPSLatitude:  item.GPSLatitude,
		GPSLongitude: item.GPSLongitude,
		Annotation:   item.Annotation,
		URL:          item.URL,
		CreatedAt:    unixMillis(item.CreatedAt),
		Folders:      cleanSet(item.Folders),
		Tags:         cleanSet(item.Tags),
	}
	if item.CapturedAt != nil {
		ms := unixMillis(*item.CapturedAt)
		c.CapturedAt = &ms
	}
	return json.Marshal(c)
}

// Hash returns the hex BLAKE2b-256 digest of the item's canonical encoding.
func Hash(item *database.Item) (string, error) {
	data, err := Canonical(item)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// cleanSet trims, drops empties, de-duplicates and sorts. The result is
// never nil so it encodes as [] rather than null.
func cleanSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func nonNegative(n *int) *int {
	if n == nil || *n < 0 {
		return nil
	}
	v := *n
	return &v
}

func millis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
