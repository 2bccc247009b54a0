package fetch

import (
	"context"
	"errors"
	"fmt"

	"media-viewer-engine/internal/media"
	"media-viewer-engine/internal/mediatypes"
)

var (
	// ErrNotFound means the collaborator has no resource for the reference.
	ErrNotFound = errors.New("media not found")

	// ErrUnsupported means the collaborator cannot address this kind of
	// reference.
	ErrUnsupported = errors.New("reference kind not supported")
)

// Payload is the raw result of a fetch.
type Payload struct {
	Data        []byte
	ContentType string
	// Meta carries transport-level key/value pairs such as the size hint.
	Meta map[string]string
}

// Fetcher retrieves the bytes addressed by a reference. Implementations
// must return promptly once ctx is done.
type Fetcher interface {
	Fetch(ctx context.Context, ref media.Reference) (*Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ref media.Reference) (*Payload, error)

// Fetch calls f(ctx, ref).
func (f FetcherFunc) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	return f(ctx, ref)
}

// BlobFetcher serves materialized references from their in-memory bytes.
type BlobFetcher struct{}

// Fetch returns the blob's bytes.
func (BlobFetcher) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	if ref.Blob == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ref.Kind())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Payload{
		Data:        ref.Blob.Data,
		ContentType: contentTypeFor(ref.Blob.ContentType, ref.DisplayName(), ref.Blob.Data),
	}, nil
}

// Router dispatches each reference to the fetcher registered for its kind.
// Materialized references go to BlobFetcher unless Blob is set.
type Router struct {
	ID   Fetcher
	Path Fetcher
	Blob Fetcher
}

// Fetch routes ref by kind.
func (r *Router) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	var f Fetcher
	switch ref.Kind() {
	case media.KindID:
		f = r.ID
	case media.KindPath:
		f = r.Path
	case media.KindMaterialized:
		f = r.Blob
		if f == nil {
			f = BlobFetcher{}
		}
	}
	if f == nil {
		return nil, fmt.Errorf("%w: no fetcher for %s references", ErrUnsupported, ref.Kind())
	}
	return f.Fetch(ctx, ref)
}

// contentTypeFor picks the declared type when it names an image, then the
// name's extension, then the sniffed signature.
func contentTypeFor(declared, name string, data []byte) string {
	if mediatypes.IsImageMime(declared) {
		return declared
	}
	if ct := mediatypes.GetMimeType(extOf(name)); ct != mediatypes.DefaultMimeType {
		return ct
	}
	return mediatypes.Sniff(data)
}

func extOf(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}
