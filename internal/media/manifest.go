package media

import (
	"fmt"
	"os"
	"path/filepath"

	"media-viewer-engine/internal/mediatypes"

	"gopkg.in/yaml.v3"
)

// ManifestEntry is one reference in a manifest. File names a local image
// that is read into memory when the manifest is resolved.
type ManifestEntry struct {
	ID      string  `json:"id,omitempty" yaml:"id,omitempty"`
	Path    string  `json:"path,omitempty" yaml:"path,omitempty"`
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Quality Quality `json:"quality,omitempty" yaml:"quality,omitempty"`
	File    string  `json:"file,omitempty" yaml:"file,omitempty"`
}

// Manifest is an ordered list of references plus the slot to open at.
type Manifest struct {
	Start      int             `json:"start,omitempty" yaml:"start,omitempty"`
	References []ManifestEntry `json:"references" yaml:"references"`
}

// LoadManifest reads a YAML manifest. Relative File entries resolve
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, e := range m.References {
		if e.File != "" && !filepath.IsAbs(e.File) {
			m.References[i].File = filepath.Join(base, e.File)
		}
	}
	return m, nil
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Reference converts the entry. File entries become materialized
// references; the file is read here.
func (e ManifestEntry) Reference() (Reference, error) {
	if e.File == "" {
		return Reference{ID: e.ID, Path: e.Path, Name: e.Name, Quality: e.Quality}, nil
	}
	if e.ID != "" || e.Path != "" {
		return Reference{}, fmt.Errorf("%w: file %q also sets id or path", ErrInvalidReference, e.File)
	}
	data, err := os.ReadFile(e.File)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to read %s: %w", e.File, err)
	}
	name := e.Name
	if name == "" {
		name = filepath.Base(e.File)
	}
	ct := mediatypes.GetMimeType(filepath.Ext(e.File))
	if ct == mediatypes.DefaultMimeType {
		ct = mediatypes.Sniff(data)
	}
	return Materialized(name, &Blob{Data: data, ContentType: ct}), nil
}

// Resolve converts every entry. An entry that cannot be resolved is
// kept as an invalid reference so slot positions match the manifest; the
// first such error is returned alongside.
func (m *Manifest) Resolve() ([]Reference, error) {
	refs := make([]Reference, len(m.References))
	var firstErr error
	for i, e := range m.References {
		ref, err := e.Reference()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reference %d: %w", i, err)
		}
		refs[i] = ref
	}
	return refs, firstErr
}
