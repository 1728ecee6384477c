package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// ThrottledTransport delays outbound requests so an upstream never sees more
// than the configured rate from this process. A request whose context ends
// while waiting fails without being sent.
type ThrottledTransport struct {
	next    ports.Transport
	limiter *rate.Limiter
}

// Throttle wraps next with a token bucket of perSecond requests and the given burst.
// A non-positive perSecond returns next unchanged.
func Throttle(next ports.Transport, perSecond float64, burst int) ports.Transport {
	if perSecond <= 0 {
		return next
	}

	if burst < 1 {
		burst = 1
	}

	return &ThrottledTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Get implements ports.Transport.
func (t *ThrottledTransport) Get(ctx context.Context, url string, headers map[string]string) (*ports.HTTPResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("outbound rate limit: %w", err)
	}

	return t.next.Get(ctx, url, headers)
}
