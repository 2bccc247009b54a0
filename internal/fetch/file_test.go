package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"media-viewer-engine/internal/media"
)

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileFetcher(t *testing.T) {
	root := t.TempDir()
	original := []byte("original-bytes-that-are-long")
	compressed := []byte("small")
	writeTestFile(t, filepath.Join(root, "2024", "a.jpg"), original)
	writeTestFile(t, filepath.Join(root, DefaultCompressedDir, "2024", "a.jpg"), compressed)
	writeTestFile(t, filepath.Join(root, "b.png"), []byte{0x89, 'P', 'N', 'G'})

	f := NewFileFetcher(root)
	ctx := context.Background()

	tests := []struct {
		name     string
		ref      media.Reference
		wantData string
		wantCT   string
		wantSize int64
	}{
		{"compressed rendition", media.ByPath("2024/a.jpg", "", media.QualityCompressed), string(compressed), "image/jpeg", int64(len(original))},
		{"original", media.ByPath("2024/a.jpg", "", media.QualityOriginal), string(original), "image/jpeg", int64(len(original))},
		{"compressed falls back", media.ByPath("b.png", "", media.QualityCompressed), "\x89PNG", "image/png", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.Fetch(ctx, tt.ref)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if string(p.Data) != tt.wantData || p.ContentType != tt.wantCT {
				t.Errorf("got (%q, %q), want (%q, %q)", p.Data, p.ContentType, tt.wantData, tt.wantCT)
			}
			sm := media.ParseSizeMetadata(p.Meta)
			if sm == nil || sm.OriginalSizeBytes != tt.wantSize {
				t.Errorf("size metadata = %+v, want %d", sm, tt.wantSize)
			}
		})
	}
}

func TestFileFetcherErrors(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "dir", "x.jpg"), []byte("x"))
	f := NewFileFetcher(root)
	ctx := context.Background()

	if _, err := f.Fetch(ctx, media.ByPath("nope.jpg", "", media.QualityOriginal)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
	if _, err := f.Fetch(ctx, media.ByPath("dir", "", media.QualityOriginal)); !errors.Is(err, ErrNotFound) {
		t.Errorf("directory err = %v, want ErrNotFound", err)
	}
	if _, err := f.Fetch(ctx, media.ByID("1")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("by id err = %v, want ErrUnsupported", err)
	}

	// Traversal is cleaned back under the root rather than escaping it.
	if _, err := f.Fetch(ctx, media.ByPath("../../etc/passwd", "", media.QualityOriginal)); !errors.Is(err, ErrNotFound) {
		t.Errorf("traversal err = %v, want ErrNotFound", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := f.Fetch(canceled, media.ByPath("dir/x.jpg", "", media.QualityOriginal)); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled err = %v", err)
	}
}
