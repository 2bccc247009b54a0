package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeDimensions(t *testing.T) {
	dims, format, err := DecodeDimensions(encodePNG(t, 64, 48))
	if err != nil {
		t.Fatalf("DecodeDimensions: %v", err)
	}
	if dims != (Dimensions{Width: 64, Height: 48}) || format != "png" {
		t.Errorf("got %+v %q, want 64x48 png", dims, format)
	}

	_, _, err = DecodeDimensions([]byte("not an image"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestDecode(t *testing.T) {
	img, err := Decode(encodePNG(t, 10, 20))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 20 {
		t.Errorf("bounds = %v", img.Bounds())
	}

	if _, err := Decode(nil); !errors.Is(err, ErrDecode) {
		t.Errorf("Decode(nil) err = %v, want ErrDecode", err)
	}
}

func TestConstrain(t *testing.T) {
	tests := []struct {
		name      string
		in        Dimensions
		maxDim    int
		maxPixels int
		want      Dimensions
	}{
		{"within limits", Dimensions{800, 600}, 4096, 20_000_000, Dimensions{800, 600}},
		{"wide over dimension", Dimensions{8000, 4000}, 4000, 20_000_000, Dimensions{4000, 2000}},
		{"tall over dimension", Dimensions{1000, 5000}, 2500, 20_000_000, Dimensions{500, 2500}},
		{"over pixels", Dimensions{400, 400}, 4096, 40_000, Dimensions{200, 200}},
		{"degenerate", Dimensions{0, 10}, 100, 100, Dimensions{0, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := constrain(tt.in, tt.maxDim, tt.maxPixels); got != tt.want {
				t.Errorf("constrain = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeConstrained(t *testing.T) {
	img, err := DecodeConstrained(encodePNG(t, 100, 50), 40, 1_000_000)
	if err != nil {
		t.Fatalf("DecodeConstrained: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Errorf("bounds = %v, want 40x20", img.Bounds())
	}
}
