package mediatypes

import (
	"bytes"
	"strings"
)

// DefaultMimeType is served when neither extension nor content identify the
// payload.
const DefaultMimeType = "application/octet-stream"

// ImageExtensions maps lowercase extensions (with leading dot) to their
// MIME types. Only formats the viewer can hand to a renderer are listed.
var ImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",
}

// IsImage reports whether ext is a supported image extension.
// The extension should be lowercase and include the leading dot.
func IsImage(ext string) bool {
	_, ok := ImageExtensions[ext]
	return ok
}

// GetMimeType returns the MIME type for ext, or DefaultMimeType.
func GetMimeType(ext string) string {
	if mime, ok := ImageExtensions[strings.ToLower(ext)]; ok {
		return mime
	}
	return DefaultMimeType
}

// IsImageMime reports whether contentType names an image media type.
// Parameters such as "; charset=" are ignored.
func IsImageMime(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(mediaType)), "image/")
}

// Sniff identifies an image format from its leading bytes and returns its
// MIME type, or DefaultMimeType if the signature is unknown.
func Sniff(data []byte) string {
	header := data
	if len(header) > 32 {
		header = header[:32]
	}

	switch {
	case bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(header, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	case bytes.HasPrefix(header, []byte("GIF8")):
		return "image/gif"
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return "image/webp"
	case bytes.HasPrefix(header, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(header, []byte{'I', 'I', 0x2A, 0x00}), bytes.HasPrefix(header, []byte{'M', 'M', 0x00, 0x2A}):
		return "image/tiff"
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return "image/heif"
		case "avif", "avis":
			return "image/avif"
		}
	}

	return DefaultMimeType
}
