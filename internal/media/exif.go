package media

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoExif is returned when the bytes carry no readable EXIF block.
var ErrNoExif = errors.New("no exif metadata")

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Exif is the subset of capture metadata the viewer surfaces. Zero values
// mean the tag was absent.
type Exif struct {
	TakenAt      time.Time `json:"takenAt,omitzero"`
	Make         string    `json:"make,omitempty"`
	Model        string    `json:"model,omitempty"`
	Lens         string    `json:"lens,omitempty"`
	ExposureTime string    `json:"exposureTime,omitempty"`
	FNumber      float64   `json:"fNumber,omitempty"`
	ISO          int       `json:"iso,omitempty"`
	FocalLength  float64   `json:"focalLength,omitempty"`
	Orientation  int       `json:"orientation,omitempty"`
	Location     *LatLng   `json:"location,omitempty"`
}

// Camera joins make and model, dropping a make the model already repeats.
func (e *Exif) Camera() string {
	switch {
	case e.Model == "":
		return e.Make
	case e.Make == "" || strings.HasPrefix(strings.ToLower(e.Model), strings.ToLower(e.Make)):
		return e.Model
	default:
		return e.Make + " " + e.Model
	}
}

// Orientation returns the EXIF orientation of data, or 1 when the bytes
// carry none.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return 1
	}
	if o := intTag(x, exif.Orientation); o >= 1 && o <= 8 {
		return o
	}
	return 1
}

// ExtractExif reads EXIF metadata from JPEG or TIFF bytes.
func ExtractExif(data []byte) (*Exif, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		if exif.IsCriticalError(err) {
			return nil, fmt.Errorf("%w: %v", ErrNoExif, err)
		}
		// Non-critical errors leave a partially populated result.
		if x == nil {
			return nil, fmt.Errorf("%w: %v", ErrNoExif, err)
		}
	}

	e := &Exif{
		Make:  stringTag(x, exif.Make),
		Model: stringTag(x, exif.Model),
		Lens:  stringTag(x, exif.LensModel),
	}

	if t, err := x.DateTime(); err == nil {
		e.TakenAt = t
	}
	if num, den, ok := ratTag(x, exif.ExposureTime); ok {
		e.ExposureTime = formatExposure(num, den)
	}
	if num, den, ok := ratTag(x, exif.FNumber); ok {
		e.FNumber = roundTo(float64(num)/float64(den), 1)
	}
	if num, den, ok := ratTag(x, exif.FocalLength); ok {
		e.FocalLength = roundTo(float64(num)/float64(den), 1)
	}
	e.ISO = intTag(x, exif.ISOSpeedRatings)
	e.Orientation = intTag(x, exif.Orientation)

	if lat, lng, err := x.LatLong(); err == nil && !math.IsNaN(lat) && !math.IsNaN(lng) {
		e.Location = &LatLng{Lat: lat, Lng: lng}
	}

	return e, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func intTag(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

func ratTag(x *exif.Exif, name exif.FieldName) (int64, int64, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, 0, false
	}
	return num, den, true
}

// formatExposure renders sub-second exposures as a fraction ("1/250") and
// longer ones in seconds ("2.5s").
func formatExposure(num, den int64) string {
	if num <= 0 {
		return ""
	}
	if num >= den {
		return fmt.Sprintf("%gs", roundTo(float64(num)/float64(den), 1))
	}
	return fmt.Sprintf("1/%d", int64(math.Round(float64(den)/float64(num))))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
