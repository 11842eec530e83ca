package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kiwi/internal/filesystem"
	"kiwi/internal/mediatypes"
)

// Extractor produces the metadata record for a media file.
type Extractor interface {
	Extract(ctx context.Context, mediaPath string) (*Record, error)
}

// SidecarExtractor reads the metadata.json next to the media file and fills
// name, extension and size from the media file when the sidecar omits them.
type SidecarExtractor struct {
	Retry filesystem.RetryConfig
}

// NewSidecarExtractor creates a SidecarExtractor using the given retry policy.
func NewSidecarExtractor(retry filesystem.RetryConfig) *SidecarExtractor {
	return &SidecarExtractor{Retry: retry}
}

// Extract implements Extractor.
func (e *SidecarExtractor) Extract(ctx context.Context, mediaPath string) (*Record, error) {
	sidecar := filepath.Join(filepath.Dir(mediaPath), SidecarName)

	data, err := filesystem.ReadFileWithRetry(ctx, sidecar, e.Retry)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSidecarUnavailable, err)
	}

	rec, err := ParseRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sidecar, err)
	}

	base := filepath.Base(mediaPath)
	if rec.Ext == "" {
		rec.Ext = mediatypes.NormalizeExt(filepath.Ext(base))
	}
	if rec.Name == "" {
		rec.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if rec.Size == nil {
		info, err := filesystem.StatWithRetry(ctx, mediaPath, e.Retry)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat media file %s: %w", mediaPath, err)
		}
		if err == nil {
			size := info.Size()
			rec.Size = &size
		}
	}

	return rec, nil
}
