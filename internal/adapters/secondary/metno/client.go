// Package metno implements the Met.no locationforecast provider.
package metno

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// DefaultBaseURL is the compact locationforecast endpoint.
const DefaultBaseURL = "https://api.met.no/weatherapi/locationforecast/2.0/compact"

// DefaultUserAgent identifies the application; Met.no rejects anonymous callers.
const DefaultUserAgent = "weather-switch-app/1.0"

// Client fetches current conditions from Met.no.
type Client struct {
	baseURL   string
	userAgent string
	transport ports.Transport
	provider  domain.Provider
	logger    *zap.Logger
}

// NewClient creates a Met.no client. Empty baseURL or userAgent fall back to the defaults.
func NewClient(baseURL, userAgent string, transport ports.Transport, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		transport: transport,
		provider:  domain.ProviderWeatherAPI,
		logger:    logger,
	}
}

// FetchCurrent retrieves and adapts the first forecast step at point.
func (c *Client) FetchCurrent(ctx context.Context, point domain.GeoPoint) (*domain.WeatherRecord, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(point.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(point.Longitude, 'f', -1, 64))

	requestURL := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
	headers := map[string]string{"User-Agent": c.userAgent}

	resp, err := c.transport.Get(ctx, requestURL, headers)

	if err != nil {
		return nil, domain.NewTransportError(c.provider, err)
	}

	if !resp.OK() {
		c.logger.Warn("forecast request rejected",
			zap.String("provider", string(c.provider)),
			zap.Int("status", resp.StatusCode))

		return nil, domain.NewTransportError(c.provider, fmt.Errorf("status %d", resp.StatusCode))
	}

	return MapCompact(resp.Body, point.Label, c.provider)
}
