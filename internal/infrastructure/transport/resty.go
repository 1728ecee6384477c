// Package transport provides the production HTTP transport for provider and
// geocoding requests, built on go-resty.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// DefaultTimeout caps a single request at the transport level. The store's
// per-provider timeout is normally shorter.
const DefaultTimeout = 30 * time.Second

// Config controls the underlying HTTP client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// RestyTransport implements ports.Transport. It never retries.
type RestyTransport struct {
	client *resty.Client
	logger *zap.Logger
}

// New creates a transport.
//
// Parameters:
//   - cfg: User agent and overall request timeout
//   - logger: Zap logger for request logging
//
// Returns:
//   - *RestyTransport: Transport ready for concurrent use
func New(cfg Config, logger *zap.Logger) *RestyTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("upstream response",
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("duration", resp.Time()),
			zap.Int("bytes", len(resp.Body())))

		return nil
	})

	return &RestyTransport{client: client, logger: logger}
}

// Get issues a GET request. A non-2xx status is not an error here; callers
// inspect the returned status.
func (t *RestyTransport) Get(ctx context.Context, url string, headers map[string]string) (*ports.HTTPResponse, error) {
	tracer := otel.Tracer("transport")
	ctx, span := tracer.Start(ctx, "Transport.Get")

	defer span.End()

	span.SetAttributes(attribute.String("http.url", url))

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)

	if err != nil {
		span.RecordError(err)

		t.logger.Warn("upstream request failed", zap.String("url", url), zap.Error(err))

		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	return &ports.HTTPResponse{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}, nil
}
