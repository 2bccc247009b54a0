package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"media-viewer-engine/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

// ErrDecode wraps every failure to parse image bytes.
var ErrDecode = errors.New("image decode failed")

const (
	// MaxImageDimension is the largest width or height decoded at full size.
	MaxImageDimension = 4096

	// MaxImagePixels caps decoded area (~80MB as RGBA).
	MaxImagePixels = 20_000_000
)

// Dimensions holds image width and height in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either side is zero.
func (d Dimensions) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

// DecodeDimensions reads the image header without decoding pixels.
func DecodeDimensions(data []byte) (Dimensions, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Dimensions{}, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, format, nil
}

// DisplayDimensions is the size data is displayed at: the header size with
// width and height swapped for EXIF orientations 5 to 8, matching Decode
// without decoding pixels.
func DisplayDimensions(data []byte) (Dimensions, error) {
	d, _, err := DecodeDimensions(data)
	if err != nil {
		return Dimensions{}, err
	}
	if Orientation(data) >= 5 {
		d.Width, d.Height = d.Height, d.Width
	}
	return d, nil
}

// Decode fully decodes data, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// DecodeConstrained decodes data and downscales the result if it exceeds
// maxDimension on either side or maxPixels in area.
func DecodeConstrained(data []byte, maxDimension, maxPixels int) (image.Image, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	target := constrain(Dimensions{Width: width, Height: height}, maxDimension, maxPixels)
	if target.Width == width && target.Height == height {
		return img, nil
	}

	logging.Debug("Constraining large image from %dx%d to %dx%d", width, height, target.Width, target.Height)
	return imaging.Resize(img, target.Width, target.Height, imaging.Lanczos), nil
}

// constrain returns the largest aspect-preserving size within both limits.
func constrain(d Dimensions, maxDimension, maxPixels int) Dimensions {
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		return d
	}

	if w > maxDimension || h > maxDimension {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}

	if pixels := w * h; pixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(pixels))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}

	return Dimensions{Width: max(w, 1), Height: max(h, 1)}
}
