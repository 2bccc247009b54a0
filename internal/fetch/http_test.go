package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"media-viewer-engine/internal/media"
)

func TestHTTPFetcherResolveURL(t *testing.T) {
	f := NewHTTPFetcher("https://media.example.com/", "", nil)

	tests := []struct {
		name string
		ref  media.Reference
		want string
	}{
		{"by id", media.ByID("7f3a"), "https://media.example.com/api/v1/media/7f3a/download?quality=compressed"},
		{"by id original", media.ByID("7f3a").WithQuality(media.QualityOriginal), "https://media.example.com/api/v1/media/7f3a/download?quality=original"},
		{"by path escapes segments", media.ByPath("/2024/summer trip/a#1.jpg", "", media.QualityCompressed), "https://media.example.com/api/v1/files/2024/summer%20trip/a%231.jpg?quality=compressed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.resolveURL(tt.ref)
			if err != nil {
				t.Fatalf("resolveURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveURL = %q, want %q", got, tt.want)
			}
		})
	}

	_, err := f.resolveURL(media.Materialized("x", &media.Blob{Data: []byte{1}}))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("blob err = %v, want ErrUnsupported", err)
	}
}

func TestHTTPFetcherFetch(t *testing.T) {
	var gotAuth, gotQuality string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuality = r.URL.Query().Get("quality")
		switch r.URL.Path {
		case "/api/v1/media/ok/download":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set(media.SizeHintKey, "originalSize=4096; format=jpeg")
			_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
		case "/api/v1/media/broken/download":
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "secret", srv.Client())

	p, err := f.Fetch(context.Background(), media.ByID("ok"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotAuth != "Bearer secret" || gotQuality != "compressed" {
		t.Errorf("auth=%q quality=%q", gotAuth, gotQuality)
	}
	if p.ContentType != "image/jpeg" || len(p.Data) != 4 {
		t.Errorf("payload = %q %d bytes", p.ContentType, len(p.Data))
	}
	if sm := media.ParseSizeMetadata(p.Meta); sm == nil || sm.OriginalSizeBytes != 4096 {
		t.Errorf("size metadata = %+v", sm)
	}

	if _, err := f.Fetch(context.Background(), media.ByID("missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
	if _, err := f.Fetch(context.Background(), media.ByID("broken")); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("broken err = %v, want non-NotFound error", err)
	}
}

func TestHTTPFetcherCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPFetcher(srv.URL, "", srv.Client()).Fetch(ctx, media.ByID("x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
