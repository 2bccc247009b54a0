package fetch

import (
	"context"

	"media-viewer-engine/internal/media"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	base    Fetcher
	limiter *rate.Limiter
}

// RateLimited wraps f so that fetches start at most perSecond times per
// second with the given burst. A non-positive rate returns f unchanged.
func RateLimited(f Fetcher, perSecond float64, burst int) Fetcher {
	if perSecond <= 0 {
		return f
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{base: f, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Fetch waits for a token, giving up if ctx ends first.
func (r *rateLimited) Fetch(ctx context.Context, ref media.Reference) (*Payload, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.base.Fetch(ctx, ref)
}
