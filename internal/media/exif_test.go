package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"testing"
)

type tiffEntry struct {
	tag   uint16
	ascii string
	short uint16
}

// buildTIFF writes a little-endian TIFF with a single IFD holding the given
// ASCII and SHORT entries. Entries must be sorted by tag.
func buildTIFF(entries []tiffEntry) []byte {
	var head, data bytes.Buffer
	le := binary.LittleEndian

	head.WriteString("II")
	binary.Write(&head, le, uint16(42))
	binary.Write(&head, le, uint32(8))
	binary.Write(&head, le, uint16(len(entries)))

	dataStart := uint32(8 + 2 + len(entries)*12 + 4)
	for _, e := range entries {
		binary.Write(&head, le, e.tag)
		if e.ascii != "" {
			value := append([]byte(e.ascii), 0)
			binary.Write(&head, le, uint16(2))
			binary.Write(&head, le, uint32(len(value)))
			if len(value) <= 4 {
				padded := make([]byte, 4)
				copy(padded, value)
				head.Write(padded)
			} else {
				binary.Write(&head, le, dataStart+uint32(data.Len()))
				data.Write(value)
				if data.Len()%2 == 1 {
					data.WriteByte(0)
				}
			}
			continue
		}
		binary.Write(&head, le, uint16(3))
		binary.Write(&head, le, uint32(1))
		binary.Write(&head, le, e.short)
		binary.Write(&head, le, uint16(0))
	}
	binary.Write(&head, le, uint32(0))

	head.Write(data.Bytes())
	return head.Bytes()
}

func TestExtractExif(t *testing.T) {
	raw := buildTIFF([]tiffEntry{
		{tag: 0x010F, ascii: "FUJIFILM"},
		{tag: 0x0110, ascii: "X-T4"},
		{tag: 0x0112, short: 6},
		{tag: 0x0132, ascii: "2024:05:01 10:20:30"},
	})

	e, err := ExtractExif(raw)
	if err != nil {
		t.Fatalf("ExtractExif: %v", err)
	}

	if e.Make != "FUJIFILM" || e.Model != "X-T4" {
		t.Errorf("make/model = %q/%q", e.Make, e.Model)
	}
	if e.Orientation != 6 {
		t.Errorf("Orientation = %d, want 6", e.Orientation)
	}
	if e.TakenAt.Year() != 2024 || e.TakenAt.Month() != 5 || e.TakenAt.Day() != 1 || e.TakenAt.Hour() != 10 {
		t.Errorf("TakenAt = %v", e.TakenAt)
	}
	if e.Location != nil {
		t.Errorf("Location = %+v, want nil", e.Location)
	}
	if got := e.Camera(); got != "FUJIFILM X-T4" {
		t.Errorf("Camera() = %q", got)
	}
}

func TestExtractExifAbsent(t *testing.T) {
	_, err := ExtractExif([]byte("definitely not an image"))
	if !errors.Is(err, ErrNoExif) {
		t.Errorf("err = %v, want ErrNoExif", err)
	}
}

func TestExifCamera(t *testing.T) {
	tests := []struct {
		make, model string
		want        string
	}{
		{"Canon", "Canon EOS R5", "Canon EOS R5"},
		{"SONY", "ILCE-7M3", "SONY ILCE-7M3"},
		{"", "Pixel 8", "Pixel 8"},
		{"NIKON", "", "NIKON"},
	}
	for _, tt := range tests {
		e := &Exif{Make: tt.make, Model: tt.model}
		if got := e.Camera(); got != tt.want {
			t.Errorf("Camera(%q, %q) = %q, want %q", tt.make, tt.model, got, tt.want)
		}
	}
}

func TestFormatExposure(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{1, 250, "1/250"},
		{10, 2500, "1/250"},
		{5, 2, "2.5s"},
		{1, 1, "1s"},
		{0, 1, ""},
	}
	for _, tt := range tests {
		if got := formatExposure(tt.num, tt.den); got != tt.want {
			t.Errorf("formatExposure(%d, %d) = %q, want %q", tt.num, tt.den, got, tt.want)
		}
	}
}

// jpegWithOrientation encodes a w x h JPEG carrying an APP1 EXIF block with
// the given orientation.
func jpegWithOrientation(t *testing.T, w, h, orientation int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	plain := buf.Bytes()

	payload := append([]byte("Exif\x00\x00"), buildTIFF([]tiffEntry{{tag: 0x0112, short: uint16(orientation)}})...)
	var out bytes.Buffer
	out.Write(plain[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(plain[2:])
	return out.Bytes()
}

func TestDisplayDimensionsMatchDecode(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Dimensions
	}{
		{"png", encodePNG(t, 40, 20), Dimensions{40, 20}},
		{"jpeg upright", jpegWithOrientation(t, 40, 20, 1), Dimensions{40, 20}},
		{"jpeg rotated 180", jpegWithOrientation(t, 40, 20, 3), Dimensions{40, 20}},
		{"jpeg transposed", jpegWithOrientation(t, 40, 20, 5), Dimensions{20, 40}},
		{"jpeg rotated 90", jpegWithOrientation(t, 40, 20, 6), Dimensions{20, 40}},
		{"jpeg rotated 270", jpegWithOrientation(t, 40, 20, 8), Dimensions{20, 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DisplayDimensions(tt.data)
			if err != nil {
				t.Fatalf("DisplayDimensions: %v", err)
			}
			if got != tt.want {
				t.Errorf("DisplayDimensions = %+v, want %+v", got, tt.want)
			}
			img, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if b := img.Bounds(); b.Dx() != got.Width || b.Dy() != got.Height {
				t.Errorf("Decode = %dx%d, header size %+v disagrees", b.Dx(), b.Dy(), got)
			}
		})
	}
}

func TestOrientationAbsent(t *testing.T) {
	if o := Orientation(encodePNG(t, 4, 4)); o != 1 {
		t.Errorf("Orientation(png) = %d, want 1", o)
	}
	if o := Orientation([]byte("corrupt")); o != 1 {
		t.Errorf("Orientation(corrupt) = %d, want 1", o)
	}
}
