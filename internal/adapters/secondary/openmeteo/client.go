// Package openmeteo implements the Open-Meteo backed provider: the forecast
// client, its payload adapter and the geocoding lookup shared by both providers.
package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/sean-rowe/weather-switch/internal/core/domain"
	"github.com/sean-rowe/weather-switch/internal/core/ports"
)

// DefaultBaseURL is the public forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const currentFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code"

// Client fetches current conditions for a resolved point.
type Client struct {
	// baseURL is the forecast endpoint, without query string
	baseURL string

	// transport issues the HTTP call
	transport ports.Transport

	// provider is stamped on produced records and names failures
	provider domain.Provider

	logger *zap.Logger
}

// NewClient creates a forecast client.
//
// Parameters:
//   - baseURL: Forecast endpoint; DefaultBaseURL when empty
//   - transport: HTTP transport capability
//   - logger: Zap logger for request logging
//
// Returns:
//   - *Client: Configured forecast client
func NewClient(baseURL string, transport ports.Transport, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:   baseURL,
		transport: transport,
		provider:  domain.ProviderOpenWeather,
		logger:    logger,
	}
}

// FetchCurrent retrieves and adapts the current conditions at point.
//
// Parameters:
//   - ctx: Context for cancellation
//   - point: Resolved location; its label is copied onto the record
//
// Returns:
//   - *domain.WeatherRecord: Adapted record
//   - error: TRANSPORT_FAILED on a failed or non-success call, MALFORMED_RESPONSE on a bad body
func (c *Client) FetchCurrent(ctx context.Context, point domain.GeoPoint) (*domain.WeatherRecord, error) {
	requestURL := c.buildURL(point.Coordinates)

	resp, err := c.transport.Get(ctx, requestURL, nil)

	if err != nil {
		return nil, domain.NewTransportError(c.provider, err)
	}

	if !resp.OK() {
		c.logger.Warn("forecast request rejected",
			zap.String("provider", string(c.provider)),
			zap.Int("status", resp.StatusCode))

		return nil, domain.NewTransportError(c.provider, fmt.Errorf("status %d", resp.StatusCode))
	}

	return MapCurrent(resp.Body, point.Label, c.provider)
}

func (c *Client) buildURL(coords domain.Coordinates) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	values.Set("current", currentFields)

	return fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
}
