package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"media-viewer-engine/internal/media"
)

type fakeObject struct {
	data        []byte
	contentType string
	meta        map[string]string
}

type fakeBucket struct {
	objects map[string]fakeObject
	keys    []string
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.keys = append(b.keys, *in.Key)
	obj, ok := b.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	ct := obj.contentType
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: &ct,
		Metadata:    obj.meta,
	}, nil
}

func TestS3Fetcher(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]fakeObject{
		"photos/2024/a.jpg":             {data: []byte("original-a"), contentType: "image/jpeg"},
		"photos/.compressed/2024/a.jpg": {data: []byte("small-a"), contentType: "image/jpeg", meta: map[string]string{"original-size": "10"}},
		"photos/b.webp":                 {data: []byte("RIFF\x00\x00\x00\x00WEBP"), contentType: "binary/octet-stream"},
	}}
	f := newS3Fetcher(bucket, S3Config{Bucket: "media", Prefix: "photos"})
	ctx := context.Background()

	p, err := f.Fetch(ctx, media.ByPath("2024/a.jpg", "", media.QualityCompressed))
	if err != nil {
		t.Fatalf("compressed: %v", err)
	}
	if string(p.Data) != "small-a" {
		t.Errorf("compressed data = %q", p.Data)
	}
	if sm := media.ParseSizeMetadata(p.Meta); sm == nil || sm.OriginalSizeBytes != 10 {
		t.Errorf("size metadata = %+v", sm)
	}

	p, err = f.Fetch(ctx, media.ByPath("b.webp", "", media.QualityCompressed))
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if p.ContentType != "image/webp" {
		t.Errorf("content type = %q, want sniffed image/webp", p.ContentType)
	}
	if sm := media.ParseSizeMetadata(p.Meta); sm == nil || sm.OriginalSizeBytes != int64(len(p.Data)) {
		t.Errorf("fallback size metadata = %+v", sm)
	}

	if _, err := f.Fetch(ctx, media.ByPath("missing.jpg", "", media.QualityOriginal)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
	if _, err := f.Fetch(ctx, media.ByID("x")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("by id err = %v, want ErrUnsupported", err)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, rel, want string
	}{
		{"photos", "a.jpg", "photos/a.jpg"},
		{"", "/a/b.jpg", "a/b.jpg"},
		{"photos", "../../secret", "photos/secret"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, tt.rel); got != tt.want {
			t.Errorf("objectKey(%q, %q) = %q, want %q", tt.prefix, tt.rel, got, tt.want)
		}
	}
}
