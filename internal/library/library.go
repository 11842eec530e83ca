package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kiwi/internal/filesystem"
	"kiwi/internal/logging"
)

const (
	// ItemSuffix marks an item folder: <id>.info
	ItemSuffix = ".info"
	// SidecarName is the metadata file inside every item folder.
	SidecarName = "metadata.json"
	// MTimeMapName is the optional last-modified map at the library root.
	MTimeMapName = "mtime.json"
	// ImagesDirName holds the item folders when present.
	ImagesDirName = "images"

	thumbnailSuffix = "_thumbnail.png"
)

var (
	// ErrLibraryUnreachable means the library root is missing or not a directory.
	ErrLibraryUnreachable = errors.New("library root unreachable")
	// ErrNoMediaFile means an item folder holds no media file.
	ErrNoMediaFile = errors.New("no media file in item folder")
	// ErrMediaUnreadable means the media file could not be opened or read.
	ErrMediaUnreadable = errors.New("media file unreadable")
)

// Item is one <id>.info folder found on disk.
type Item struct {
	ID  string
	Dir string
}

// SidecarPath returns the path of the item's metadata.json.
func (it Item) SidecarPath() string {
	return filepath.Join(it.Dir, SidecarName)
}

// MTimeMap is the external item ID to last-modified mapping.
type MTimeMap map[string]time.Time

// Library is an opened, validated library root.
type Library struct {
	root     string
	itemsDir string
	retry    filesystem.RetryConfig
}

// Open validates root and resolves where item folders live. Items are read
// from <root>/images when that directory exists, otherwise from root itself.
func Open(ctx context.Context, root string, retry filesystem.RetryConfig) (*Library, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: no library directory configured", ErrLibraryUnreachable)
	}
	root = filepath.Clean(root)

	info, err := filesystem.StatWithRetry(ctx, root, retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLibraryUnreachable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLibraryUnreachable, root)
	}

	itemsDir := root
	imagesDir := filepath.Join(root, ImagesDirName)
	if info, err := filesystem.StatWithRetry(ctx, imagesDir, retry); err == nil && info.IsDir() {
		itemsDir = imagesDir
	}

	logging.Debug("Library opened: root=%s items=%s", root, itemsDir)

	return &Library{root: root, itemsDir: itemsDir, retry: retry}, nil
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// ItemsDir returns the directory holding the item folders.
func (l *Library) ItemsDir() string {
	return l.itemsDir
}

// Items lists every item folder, sorted by ID. Hidden entries and entries
// without the .info suffix are ignored.
func (l *Library) Items(ctx context.Context) ([]Item, error) {
	entries, err := filesystem.ReadDirWithRetry(ctx, l.itemsDir, l.retry)
	if err != nil {
		return nil, fmt.Errorf("failed to list items in %s: %w", l.itemsDir, err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.IsDir() || !strings.HasSuffix(name, ItemSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, ItemSuffix)
		if id == "" {
			continue
		}
		items = append(items, Item{ID: id, Dir: filepath.Join(l.itemsDir, name)})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// Stat stats a path under the library with the library's retry policy.
func (l *Library) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	return filesystem.StatWithRetry(ctx, path, l.retry)
}

// MediaFile returns the path of the item's media file: the first regular,
// non-hidden file that is neither the sidecar nor a generated thumbnail.
func (l *Library) MediaFile(ctx context.Context, it Item) (string, error) {
	entries, err := filesystem.ReadDirWithRetry(ctx, it.Dir, l.retry)
	if err != nil {
		return "", fmt.Errorf("failed to read item folder %s: %w", it.Dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if name == SidecarName || strings.HasSuffix(name, thumbnailSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMediaFile, it.Dir)
	}

	sort.Strings(names)
	return filepath.Join(it.Dir, names[0]), nil
}

// LoadMTimeMap reads <root>/mtime.json. A missing file yields an empty map.
// A malformed file is logged and also yields an empty map, so detection
// falls back to the other signals.
func (l *Library) LoadMTimeMap(ctx context.Context) (MTimeMap, error) {
	path := filepath.Join(l.root, MTimeMapName)

	data, err := filesystem.ReadFileWithRetry(ctx, path, l.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return MTimeMap{}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Warn("Failed to read %s: %v", path, err)
		return MTimeMap{}, nil
	}

	m, err := ParseMTimeMap(data)
	if err != nil {
		logging.Warn("Ignoring malformed %s: %v", path, err)
		return MTimeMap{}, nil
	}

	logging.Debug("Loaded %d entries from %s", len(m), path)
	return m, nil
}

// ParseMTimeMap decodes a flat {"id": unixMillis} document. Values that are
// not numbers are skipped so one bad entry does not discard the rest; only a
// document that is not a JSON object is an error.
func ParseMTimeMap(data []byte) (MTimeMap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := make(MTimeMap, len(raw))
	for id, val := range raw {
		var num json.Number
		if err := json.Unmarshal(val, &num); err != nil {
			logging.Debug("Skipping non-numeric mtime for %s: %s", id, val)
			continue
		}
		ms, err := num.Int64()
		if err != nil {
			f, ferr := num.Float64()
			if ferr != nil {
				continue
			}
			ms = int64(f)
		}
		m[id] = time.UnixMilli(ms).UTC()
	}
	return m, nil
}
