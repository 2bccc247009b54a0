package mediatypes

import "testing"

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".JPEG", "image/jpeg"},
		{".png", "image/png"},
		{".webp", "image/webp"},
		{".avif", "image/avif"},
		{".mp4", DefaultMimeType},
		{"", DefaultMimeType},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMimeType(tt.ext); got != tt.want {
				t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	for _, ext := range []string{".jpg", ".png", ".heic"} {
		if !IsImage(ext) {
			t.Errorf("IsImage(%q) = false", ext)
		}
	}
	for _, ext := range []string{".mov", ".txt", ".JPG"} {
		if IsImage(ext) {
			t.Errorf("IsImage(%q) = true", ext)
		}
	}
}

func TestIsImageMime(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"image/jpeg", true},
		{"Image/PNG; q=1", true},
		{"application/octet-stream", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsImageMime(tt.ct); got != tt.want {
			t.Errorf("IsImageMime(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n'}, "image/png"},
		{"gif", []byte("GIF89a...."), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"tiff little endian", []byte{'I', 'I', 0x2A, 0x00, 8, 0, 0, 0}, "image/tiff"},
		{"heic", []byte("\x00\x00\x00\x18ftypheic"), "image/heif"},
		{"avif", []byte("\x00\x00\x00\x18ftypavif"), "image/avif"},
		{"mp4 container", []byte("\x00\x00\x00\x18ftypisom"), DefaultMimeType},
		{"empty", nil, DefaultMimeType},
		{"text", []byte("hello world"), DefaultMimeType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff = %q, want %q", got, tt.want)
			}
		})
	}
}
