package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	// Decoders beyond the standard library's jpeg/png/gif.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"kiwi/internal/filesystem"
	"kiwi/internal/logging"
	"kiwi/internal/mediatypes"
)

// ImageProbe wraps another Extractor and fills missing image dimensions from
// the image header. JPEGs are decoded in full so that EXIF orientation is
// applied and a portrait photo stored sideways reports its displayed size.
type ImageProbe struct {
	Next  Extractor
	Retry filesystem.RetryConfig
}

// NewImageProbe wraps next with dimension probing.
func NewImageProbe(next Extractor, retry filesystem.RetryConfig) *ImageProbe {
	return &ImageProbe{Next: next, Retry: retry}
}

// Extract implements Extractor. A file whose contents are not a known image
// format is returned without dimensions. Failing to open or read the file is
// an extraction failure wrapping ErrMediaUnreadable, so the stored row is
// left alone until the file can be read again.
func (p *ImageProbe) Extract(ctx context.Context, mediaPath string) (*Record, error) {
	rec, err := p.Next.Extract(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	if rec.Width != nil && rec.Height != nil {
		return rec, nil
	}
	if !mediatypes.IsProbeableImage(rec.Ext) {
		return rec, nil
	}

	width, height, err := p.dimensions(ctx, mediaPath)
	if errors.Is(err, image.ErrFormat) {
		logging.Debug("Not a decodable image, skipping dimensions: %s", mediaPath)
		return rec, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrMediaUnreadable, err)
	}

	rec.Width = &width
	rec.Height = &height
	return rec, nil
}

func (p *ImageProbe) dimensions(ctx context.Context, path string) (int, int, error) {
	f, err := filesystem.OpenWithRetry(ctx, path, p.Retry)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config %s: %w", path, err)
	}
	if format != "jpeg" {
		return cfg.Width, cfg.Height, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("rewind %s: %w", path, err)
	}
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}
