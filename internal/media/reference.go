package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidReference is returned for references that address nothing, or
// more than one thing.
var ErrInvalidReference = errors.New("invalid media reference")

// Quality selects which variant of an image a reference addresses.
type Quality string

const (
	// QualityCompressed is the reduced-size rendition served by default.
	QualityCompressed Quality = "compressed"
	// QualityOriginal is the full-size upload.
	QualityOriginal Quality = "original"
)

// Toggle returns the other quality.
func (q Quality) Toggle() Quality {
	if q == QualityOriginal {
		return QualityCompressed
	}
	return QualityOriginal
}

// ParseQuality accepts "compressed", "original", or "" (compressed).
func ParseQuality(s string) (Quality, error) {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case "", QualityCompressed:
		return QualityCompressed, nil
	case QualityOriginal:
		return QualityOriginal, nil
	default:
		return "", fmt.Errorf("%w: unknown quality %q", ErrInvalidReference, s)
	}
}

// Kind identifies how a reference is addressed.
type Kind string

const (
	KindID           Kind = "id"
	KindPath         Kind = "path"
	KindMaterialized Kind = "materialized"
)

// Blob is image content the caller already holds.
type Blob struct {
	Data        []byte
	ContentType string
	// Token, when set, is used as the blob's identity instead of a content
	// hash.
	Token string
}

// SourceKey is the cache and de-duplication identity of a resource at a
// given quality.
type SourceKey string

// Reference addresses one image. Exactly one of ID, Path or Blob is set.
type Reference struct {
	ID      string  `json:"id,omitempty" yaml:"id,omitempty"`
	Path    string  `json:"path,omitempty" yaml:"path,omitempty"`
	Name    string  `json:"name,omitempty" yaml:"name,omitempty"`
	Quality Quality `json:"quality,omitempty" yaml:"quality,omitempty"`
	Blob    *Blob   `json:"-" yaml:"-"`
}

// ByID returns a reference to a remote item by identifier.
func ByID(id string) Reference {
	return Reference{ID: id, Quality: QualityCompressed}
}

// ByPath returns a reference to a remote item by path at quality q.
func ByPath(p, name string, q Quality) Reference {
	return Reference{Path: p, Name: name, Quality: q}
}

// Materialized returns a reference to bytes already in memory.
func Materialized(name string, b *Blob) Reference {
	return Reference{Name: name, Blob: b}
}

// Kind reports how the reference is addressed. The result is only
// meaningful for references that pass Validate.
func (r Reference) Kind() Kind {
	switch {
	case r.Blob != nil:
		return KindMaterialized
	case r.Path != "":
		return KindPath
	default:
		return KindID
	}
}

// Validate checks that exactly one addressing field is set and that the
// quality is known.
func (r Reference) Validate() error {
	set := 0
	if r.ID != "" {
		set++
	}
	if r.Path != "" {
		set++
	}
	if r.Blob != nil {
		set++
		if len(r.Blob.Data) == 0 && r.Blob.Token == "" {
			return fmt.Errorf("%w: empty blob", ErrInvalidReference)
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: expected exactly one of id, path or blob, got %d", ErrInvalidReference, set)
	}
	if _, err := ParseQuality(string(r.Quality)); err != nil {
		return err
	}
	return nil
}

// HasVariants reports whether the reference can be re-addressed at another
// quality. Materialized blobs cannot.
func (r Reference) HasVariants() bool {
	return r.Blob == nil
}

// WithQuality returns a copy of r addressing quality q.
func (r Reference) WithQuality(q Quality) Reference {
	r.Quality = q
	return r
}

// EffectiveQuality returns the quality, treating empty as compressed.
func (r Reference) EffectiveQuality() Quality {
	if r.Quality == "" {
		return QualityCompressed
	}
	return r.Quality
}

// DisplayName returns Name, falling back to the last path element or id.
func (r Reference) DisplayName() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Path != "":
		return path.Base(r.Path)
	case r.ID != "":
		return r.ID
	default:
		return ""
	}
}

// Key derives the SourceKey. Remote keys include the quality; blob keys
// use the caller's token or a content hash.
func (r Reference) Key() SourceKey {
	switch r.Kind() {
	case KindMaterialized:
		if r.Blob.Token != "" {
			return SourceKey("blob:" + r.Blob.Token)
		}
		sum := sha256.Sum256(r.Blob.Data)
		return SourceKey("blob:" + hex.EncodeToString(sum[:16]))
	case KindPath:
		return SourceKey(fmt.Sprintf("path:%s@%s", path.Clean("/"+r.Path), r.EffectiveQuality()))
	default:
		return SourceKey(fmt.Sprintf("id:%s@%s", r.ID, r.EffectiveQuality()))
	}
}

func (r Reference) String() string {
	return string(r.Key())
}
