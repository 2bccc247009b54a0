package media

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"time"

	"media-viewer-engine/internal/logging"
	"media-viewer-engine/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	// DefaultThumbnailSize bounds both sides of a thumbnail.
	DefaultThumbnailSize = 200

	// DefaultThumbnailQuality is the JPEG quality of encoded thumbnails.
	DefaultThumbnailQuality = 80

	// ThumbnailContentType is the content type of every generated thumbnail.
	ThumbnailContentType = "image/jpeg"
)

// Thumbnailer turns image bytes into a small aspect-preserving JPEG.
// It is safe for concurrent use.
type Thumbnailer struct {
	maxWidth  int
	maxHeight int
	quality   int
}

// NewThumbnailer returns a thumbnailer bounded to size x size pixels.
// A non-positive size selects DefaultThumbnailSize.
func NewThumbnailer(size int) *Thumbnailer {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	return &Thumbnailer{
		maxWidth:  size,
		maxHeight: size,
		quality:   DefaultThumbnailQuality,
	}
}

// Bounds returns the maximum thumbnail width and height.
func (t *Thumbnailer) Bounds() (int, int) {
	return t.maxWidth, t.maxHeight
}

// Generate decodes data, fits it inside the thumbnail box with Lanczos
// resampling and re-encodes it as JPEG. Decode failures wrap ErrDecode.
// ctx is checked between phases; a single phase is not interruptible.
func (t *Thumbnailer) Generate(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsVipsAvailable() {
		out, err := thumbnailWithVips(data, t.maxWidth, t.maxHeight, t.quality)
		if err == nil {
			return out, nil
		}
		logging.Debug("vips thumbnail failed, falling back to imaging: %v", err)
	}

	start := time.Now()
	img, err := DecodeConstrained(data, MaxImageDimension, MaxImagePixels)
	observePhase("decode", start)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	thumb := imaging.Fit(img, t.maxWidth, t.maxHeight, imaging.Lanczos)
	observePhase("resize", start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	var buf bytes.Buffer
	err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: t.quality})
	observePhase("encode", start)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}

func observePhase(phase string, start time.Time) {
	metrics.ThumbnailPhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
