package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"media-viewer-engine/internal/media"
)

// DefaultHTTPTimeout bounds a single remote request when the caller's
// context carries no deadline.
const DefaultHTTPTimeout = 60 * time.Second

// HTTPFetcher retrieves media from a remote service:
//
//	GET {base}/api/v1/media/{id}/download?quality={q}
//	GET {base}/api/v1/files/{path}?quality={q}
//
// The size hint is read from the media.SizeHintKey response header.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL. token, when non-empty, is
// sent as a bearer token. A nil client selects one with DefaultHTTPTimeout.
func NewHTTPFetcher(baseURL, token string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (f *HTTPFetcher) resolveURL(ref media.Reference) (string, error) {
	q := url.Values{}
	q.Set("quality", string(ref.EffectiveQuality()))

	switch ref.Kind() {
	case media.KindID:
		return fmt.Sprintf("%s/api/v1/media/%s/download?%s", f.baseURL, url.PathEscape(ref.ID), q.Encode()), nil
	case media.KindPath:
		segments := strings.Split(strings.Trim(ref.Path, "/"), "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		return fmt.Sprintf("%s/api/v1/files/%s?%s", f.baseURL, strings.Join(segments, "/"), q.Encode()), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ref.Kind())
	}
}

// Fetch downloads the referenced media.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	u, err := f.resolveURL(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	meta := make(map[string]string)
	if hint := resp.Header.Get(media.SizeHintKey); hint != "" {
		meta[media.SizeHintKey] = hint
	}
	meta["Content-Length"] = strconv.Itoa(len(data))

	return &Payload{
		Data:        data,
		ContentType: contentTypeFor(resp.Header.Get("Content-Type"), ref.DisplayName(), data),
		Meta:        meta,
	}, nil
}

// readErrorBody returns at most 512 bytes of an error response.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return "(unreadable body)"
	}
	return strings.TrimSpace(string(body))
}
