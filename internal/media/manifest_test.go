package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
start: 1
references:
  - id: 7f3a
  - path: 2024/a.jpg
    name: a.jpg
    quality: original
  - file: ./local.png
`)
	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Start != 1 || len(m.References) != 3 {
		t.Fatalf("manifest = %+v", m)
	}
	if got := m.References[1]; got.Path != "2024/a.jpg" || got.Name != "a.jpg" || got.Quality != QualityOriginal {
		t.Errorf("entry 1 = %+v", got)
	}

	if _, err := ParseManifest([]byte("references: [")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestLoadManifestResolvesFiles(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if err := os.WriteFile(filepath.Join(dir, "local.png"), png, 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(dir, "session.yaml")
	content := "references:\n  - id: abc\n  - file: local.png\n  - file: missing.png\n  - path: x.jpg\n    file: local.png\n"
	if err := os.WriteFile(manifest, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(manifest)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	refs, err := m.Resolve()
	if err == nil {
		t.Fatal("expected an error for the missing file")
	}
	if len(refs) != 4 {
		t.Fatalf("got %d refs, want 4", len(refs))
	}

	if refs[0].Kind() != KindID || refs[0].ID != "abc" {
		t.Errorf("refs[0] = %+v", refs[0])
	}
	if refs[1].Kind() != KindMaterialized || refs[1].Name != "local.png" || refs[1].Blob.ContentType != "image/png" {
		t.Errorf("refs[1] = %+v", refs[1])
	}
	if !errors.Is(refs[2].Validate(), ErrInvalidReference) {
		t.Error("unresolvable file should leave an invalid reference")
	}

	if _, err := m.References[3].Reference(); !errors.Is(err, ErrInvalidReference) {
		t.Errorf("file plus path = %v, want ErrInvalidReference", err)
	}
}
